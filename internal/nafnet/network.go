// Package nafnet implements NAFNet_lr, a Lipschitz-constrained U-Net of
// nonlinear-activation-free blocks for image restoration, and its local-pooling
// variant for full-resolution inference.
package nafnet

import (
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Observer receives the output of every top-level stage during a forward pass.
// Names match state-dict prefixes ("intro", "encoders.0", "downs.0", ...),
// plus "output" for the final cropped result.
type Observer[B tensor.Backend] func(name string, out *tensor.Tensor[B])

// NAFNet is the encoder/middle/decoder restoration network.
//
// Architecture (for E encoder stages, width W):
//
//	pad to multiple of 2^E -> circular pad -> intro (3x3, img -> W)
//	-> E x { encoder blocks, save skip, down (2x2/2, c -> 2c) }
//	-> middle blocks
//	-> E x { up (1x1 c -> 2c, pixel shuffle 2), add skip, decoder blocks }
//	-> circular pad -> ending (3x3, W -> img) -> + input -> crop
//
// Output shape always equals input shape.
//
// Example:
//
//	cfg := nafnet.DefaultConfig()
//	cfg.ImgChannel, cfg.Width = 1, 32
//	cfg.EncBlkNums = []int{1, 1, 2, 8}
//	cfg.DecBlkNums = []int{1, 1, 1, 1}
//	cfg.MiddleBlkNum = 4
//	net, err := nafnet.New(cfg, cpu.New())
//	out := net.Forward(x) // same shape as x
type NAFNet[B tensor.Backend] struct {
	cfg Config

	intro  *nn.Conv2D[B]
	ending *nn.Conv2D[B]
	pad    *nn.CircularPad[B]

	encoders []*nn.Sequential[B]
	downs    []*nn.Conv2D[B]
	middle   *nn.Sequential[B]
	ups      []*nn.Sequential[B]
	decoders []*nn.Sequential[B]

	padderSize int
	observer   Observer[B]
	rng        *rand.Rand
	backend    B
}

// New builds a NAFNet from cfg.
//
// Returns an ErrConfig-wrapped error when cfg violates an invariant.
func New[B tensor.Backend](cfg Config, backend B) (*NAFNet[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := cfg.rng()
	n := &NAFNet[B]{
		cfg:        cfg,
		padderSize: cfg.PadderSize(),
		rng:        rng,
		backend:    backend,
	}

	var err error
	if n.intro, err = newLipConv(cfg.ImgChannel, cfg.Width, 3, 1, 1, true, rng, backend); err != nil {
		return nil, fmt.Errorf("intro: %w", err)
	}
	if n.ending, err = newLipConv(cfg.Width, cfg.ImgChannel, 3, 1, 1, true, rng, backend); err != nil {
		return nil, fmt.Errorf("ending: %w", err)
	}
	if n.pad, err = nn.NewCircularPad[B](3, 3, 1, 1); err != nil {
		return nil, err
	}

	channels := cfg.Width
	for i, num := range cfg.EncBlkNums {
		stage, err := newStage(channels, num, cfg.Block, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("encoders.%d: %w", i, err)
		}
		n.encoders = append(n.encoders, stage)

		down, err := newLipConv(channels, 2*channels, 2, 2, 1, true, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("downs.%d: %w", i, err)
		}
		n.downs = append(n.downs, down)
		channels *= 2
	}

	if n.middle, err = newStage(channels, cfg.MiddleBlkNum, cfg.Block, rng, backend); err != nil {
		return nil, fmt.Errorf("middle_blks: %w", err)
	}

	for i, num := range cfg.DecBlkNums {
		conv, err := newLipConv(channels, 2*channels, 1, 1, 1, false, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("ups.%d: %w", i, err)
		}
		n.ups = append(n.ups, nn.NewSequential[B](conv, nn.NewPixelShuffle[B](2)))
		channels /= 2

		stage, err := newStage(channels, num, cfg.Block, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("decoders.%d: %w", i, err)
		}
		n.decoders = append(n.decoders, stage)
	}

	return n, nil
}

// newStage creates a Sequential of num NAFBlocks over c channels.
func newStage[B tensor.Backend](c, num int, cfg BlockConfig, rng *rand.Rand, backend B) (*nn.Sequential[B], error) {
	stage := nn.NewSequential[B]()
	for i := 0; i < num; i++ {
		block, err := NewNAFBlock(c, cfg, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("%d: %w", i, err)
		}
		stage.Add(block)
	}
	return stage, nil
}

// Forward restores x [N, img_channel, H, W] and returns a tensor of the same shape.
//
// Panics when x is not 4D or has the wrong channel count.
func (n *NAFNet[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	x.MustBe4D("nafnet", n.cfg.ImgChannel)
	_, _, h, w := x.Shape().NCHW()

	inp := n.checkImageSize(x)

	out := n.observe("intro", n.intro.Forward(n.pad.Forward(inp)))

	skips := make([]*tensor.Tensor[B], 0, len(n.encoders))
	for i, encoder := range n.encoders {
		out = n.observe("encoders."+strconv.Itoa(i), encoder.Forward(out))
		skips = append(skips, out)
		out = n.observe("downs."+strconv.Itoa(i), n.downs[i].Forward(out))
	}

	out = n.observe("middle_blks", n.middle.Forward(out))

	for i, decoder := range n.decoders {
		out = n.observe("ups."+strconv.Itoa(i), n.ups[i].Forward(out))
		out = out.Add(skips[len(skips)-1-i])
		out = n.observe("decoders."+strconv.Itoa(i), decoder.Forward(out))
	}

	out = n.observe("ending", n.ending.Forward(n.pad.Forward(out)))
	out = out.Add(inp)

	if out.Shape()[2] != h || out.Shape()[3] != w {
		out = out.Crop(h, w)
	}
	return n.observe("output", out)
}

// checkImageSize pads the bottom and right edges circularly so that H and W
// are multiples of the padder size.
func (n *NAFNet[B]) checkImageSize(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	_, _, h, w := x.Shape().NCHW()
	modPadH := (n.padderSize - h%n.padderSize) % n.padderSize
	modPadW := (n.padderSize - w%n.padderSize) % n.padderSize
	if modPadH == 0 && modPadW == 0 {
		return x
	}
	return x.PadCircular(0, modPadH, 0, modPadW)
}

func (n *NAFNet[B]) observe(name string, out *tensor.Tensor[B]) *tensor.Tensor[B] {
	if n.observer != nil {
		n.observer(name, out)
	}
	return out
}

// Observe installs fn as the stage observer; nil removes it.
func (n *NAFNet[B]) Observe(fn Observer[B]) {
	n.observer = fn
}

// Config returns the configuration the network was built from.
func (n *NAFNet[B]) Config() Config {
	return n.cfg
}

// PadderSize returns the factor input sizes are padded to a multiple of.
func (n *NAFNet[B]) PadderSize() int {
	return n.padderSize
}

// Backend returns the computation backend.
func (n *NAFNet[B]) Backend() B {
	return n.backend
}

// Blocks returns every NAFBlock in forward order.
func (n *NAFNet[B]) Blocks() []*NAFBlock[B] {
	var stages []*nn.Sequential[B]
	stages = append(stages, n.encoders...)
	stages = append(stages, n.middle)
	stages = append(stages, n.decoders...)

	var blocks []*NAFBlock[B]
	for _, stage := range stages {
		for i := 0; i < stage.Len(); i++ {
			if b, ok := stage.Module(i).(*NAFBlock[B]); ok {
				blocks = append(blocks, b)
			}
		}
	}
	return blocks
}

// Convs returns every convolution of the network.
func (n *NAFNet[B]) Convs() []*nn.Conv2D[B] {
	convs := []*nn.Conv2D[B]{n.intro, n.ending}
	convs = append(convs, n.downs...)
	for _, up := range n.ups {
		convs = append(convs, up.Module(0).(*nn.Conv2D[B]))
	}
	for _, b := range n.Blocks() {
		convs = append(convs, b.Convs()...)
	}
	return convs
}

// children lists the top-level modules in state-dict order.
func (n *NAFNet[B]) children() []child[B] {
	children := []child[B]{
		{"intro", n.intro},
		{"ending", n.ending},
	}
	for i, m := range n.encoders {
		children = append(children, child[B]{"encoders." + strconv.Itoa(i), m})
	}
	for i, m := range n.decoders {
		children = append(children, child[B]{"decoders." + strconv.Itoa(i), m})
	}
	children = append(children, child[B]{"middle_blks", n.middle})
	for i, m := range n.ups {
		children = append(children, child[B]{"ups." + strconv.Itoa(i), m})
	}
	for i, m := range n.downs {
		children = append(children, child[B]{"downs." + strconv.Itoa(i), m})
	}
	return children
}

// Parameters returns all parameters of the network.
func (n *NAFNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range n.children() {
		params = append(params, c.module.Parameters()...)
	}
	return params
}

// NumParams returns the total number of scalar parameters.
func (n *NAFNet[B]) NumParams() int {
	return nn.NumParams[B](n)
}

// StateDict returns all parameters keyed by their PyTorch state-dict names,
// e.g. "intro.parametrizations.weight.original", "encoders.0.0.beta",
// "ups.1.0.parametrizations.weight.0.ci".
//
// The tensors share memory with the network.
func (n *NAFNet[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, c := range n.children() {
		nn.Merge(stateDict, nn.WithPrefix(c.name, c.module.StateDict()))
	}
	return stateDict
}

// LoadStateDict copies a full state dict into the network.
//
// Every parameter must be present with a matching shape, and the dict must
// not contain keys the network does not have.
func (n *NAFNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	own := n.StateDict()

	var unexpected []string
	for k := range stateDict {
		if _, ok := own[k]; !ok {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected keys in state dict: %s", strings.Join(unexpected, ", "))
	}

	// Check everything before copying so a failed load changes nothing.
	for _, k := range slices.Sorted(maps.Keys(own)) {
		raw, ok := stateDict[k]
		if !ok {
			return fmt.Errorf("missing key in state dict: %s", k)
		}
		if !raw.Shape().Equal(own[k].Shape()) {
			return fmt.Errorf("%s: shape mismatch: checkpoint %v, module %v", k, raw.Shape(), own[k].Shape())
		}
	}

	for _, c := range n.children() {
		if err := c.module.LoadStateDict(nn.SubDict(c.name, stateDict)); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// SetTraining switches dropout on or off in every block.
func (n *NAFNet[B]) SetTraining(training bool) {
	for _, b := range n.Blocks() {
		b.SetTraining(training)
	}
}
