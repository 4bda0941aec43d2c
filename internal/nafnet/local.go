package nafnet

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// LocalConfig configures the local-pooling conversion.
type LocalConfig struct {
	// TrainSize is the [N, C, H, W] shape the network was trained on.
	TrainSize [4]int

	// FastImp selects the strided approximation of the local pool. Not supported.
	FastImp bool
}

// DefaultLocalConfig returns a 1×3×256×256 training size.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{TrainSize: [4]int{1, 3, 256, 256}}
}

// BaseSize returns the window the channel attention saw during training:
// 1.5 times the training height and width.
func (c LocalConfig) BaseSize() [2]int {
	return [2]int{c.TrainSize[2] * 3 / 2, c.TrainSize[3] * 3 / 2}
}

// Local is NAFNet with every global pool of the channel attention replaced by
// a LocalAvgPool2D, so that full-resolution inference sees the same pooling
// statistics as training on crops.
//
// It wraps a built NAFNet; Forward, StateDict and the rest are the base
// network's. The pools are calibrated by one forward pass at TrainSize
// during construction.
type Local[B tensor.Backend] struct {
	*NAFNet[B]

	local LocalConfig
	pools []*nn.LocalAvgPool2D[B]
}

// NewLocal builds a NAFNet from cfg and converts it for local pooling.
//
// Returns an ErrConfig-wrapped error for an invalid cfg or local, including
// FastImp = true.
func NewLocal[B tensor.Backend](cfg Config, local LocalConfig, backend B) (*Local[B], error) {
	for i, d := range local.TrainSize {
		if d <= 0 {
			return nil, fmt.Errorf("train_size[%d] = %d must be positive: %w", i, d, ErrConfig)
		}
	}
	if local.TrainSize[1] != cfg.ImgChannel {
		return nil, fmt.Errorf("train_size has %d channels, network expects %d: %w",
			local.TrainSize[1], cfg.ImgChannel, ErrConfig)
	}
	if local.FastImp {
		return nil, fmt.Errorf("fast_imp local pooling is not supported: %w", ErrConfig)
	}

	base, err := New(cfg, backend)
	if err != nil {
		return nil, err
	}

	l := &Local[B]{NAFNet: base, local: local}
	l.convert()
	return l, nil
}

// convert swaps the pools and runs the calibration pass.
func (l *Local[B]) convert() {
	baseSize := l.local.BaseSize()
	trainH, trainW := l.local.TrainSize[2], l.local.TrainSize[3]

	for _, block := range l.Blocks() {
		pool := nn.NewLocalAvgPool2D[B](baseSize[0], baseSize[1], trainH, trainW)
		block.SetPool(pool)
		l.pools = append(l.pools, pool)
	}

	shape := tensor.Shape(l.local.TrainSize[:])
	l.Forward(tensor.Rand(shape, l.rng, l.backend))
}

// LocalConfig returns the conversion settings.
func (l *Local[B]) LocalConfig() LocalConfig {
	return l.local
}

// Pools returns the local pools in block order.
func (l *Local[B]) Pools() []*nn.LocalAvgPool2D[B] {
	return l.pools
}
