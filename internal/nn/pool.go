package nn

import (
	"fmt"
	"sync"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// GlobalAvgPool2D averages every feature map down to a single value.
//
//	[N, C, H, W] -> [N, C, 1, 1]
type GlobalAvgPool2D[B tensor.Backend] struct {
	stateless[B]
}

// NewGlobalAvgPool2D creates a global average pool.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{}
}

// Forward averages over H and W.
func (p *GlobalAvgPool2D[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	return x.AdaptiveAvgPool2D()
}

func (p *GlobalAvgPool2D[B]) String() string {
	return "AdaptiveAvgPool2d(output_size=1)"
}

// LocalAvgPool2D is a shape-preserving sliding-window average used in place of
// a global pool when a network trained on crops runs on full-size images.
//
// The window is not fixed at construction. On the first forward it is
// calibrated from the input size:
//
//	kernel = (x.H * base[0] / train[0], x.W * base[1] / train[1])
//
// and kept for every later call. When the window covers the whole map the
// layer degenerates to a global average ([N, C, 1, 1], which broadcasts the
// same way in a channel-attention product). Otherwise the windowed means are
// replicate-padded back to [N, C, H, W].
type LocalAvgPool2D[B tensor.Backend] struct {
	stateless[B]

	base  [2]int // window size at training resolution
	train [2]int // training H, W

	mu     sync.Mutex
	kernel *[2]int
}

// NewLocalAvgPool2D creates a local pool for a network trained on trainH×trainW
// inputs whose global pool should see a baseH×baseW window.
func NewLocalAvgPool2D[B tensor.Backend](baseH, baseW, trainH, trainW int) *LocalAvgPool2D[B] {
	if baseH <= 0 || baseW <= 0 || trainH <= 0 || trainW <= 0 {
		panic(fmt.Sprintf("local_avg_pool2d: invalid base %dx%d or train size %dx%d", baseH, baseW, trainH, trainW))
	}
	return &LocalAvgPool2D[B]{
		base:  [2]int{baseH, baseW},
		train: [2]int{trainH, trainW},
	}
}

// Kernel returns the calibrated window, and false before the first forward.
func (p *LocalAvgPool2D[B]) Kernel() (kernelH, kernelW int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kernel == nil {
		return 0, 0, false
	}
	return p.kernel[0], p.kernel[1], true
}

// Forward computes the local average of x [N, C, H, W].
func (p *LocalAvgPool2D[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	x.MustBe4D("local_avg_pool2d", -1)
	shape := x.Shape()
	h, w := shape[2], shape[3]

	p.mu.Lock()
	if p.kernel == nil {
		p.kernel = &[2]int{
			max(h*p.base[0]/p.train[0], 1),
			max(w*p.base[1]/p.train[1], 1),
		}
	}
	kh, kw := p.kernel[0], p.kernel[1]
	p.mu.Unlock()

	if kh >= h && kw >= w {
		return x.AdaptiveAvgPool2D()
	}
	return x.BoxAvgPool2D(kh, kw)
}

func (p *LocalAvgPool2D[B]) String() string {
	if kh, kw, ok := p.Kernel(); ok {
		return fmt.Sprintf("AvgPool2d(kernel_size=(%d, %d), base_size=(%d, %d))", kh, kw, p.base[0], p.base[1])
	}
	return fmt.Sprintf("AvgPool2d(kernel_size=None, base_size=(%d, %d))", p.base[0], p.base[1])
}
