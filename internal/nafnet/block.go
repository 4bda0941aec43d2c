package nafnet

import (
	"fmt"
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// layerNormEps is the epsilon of every channel layer-norm in the network.
const layerNormEps = 1e-6

// child is a named submodule; names are state-dict prefixes.
type child[B tensor.Backend] struct {
	name   string
	module nn.Module[B]
}

// NAFBlock is the nonlinear-activation-free residual block.
//
// With x of C channels and dw = C*DWExpand, ffn = C*FFNExpand:
//
//	t = conv3(sca(sg(conv2(pad(conv1(norm1(x)))))))   // C -> dw -> dw -> dw/2 -> C
//	y = x + dropout1(t) * beta
//	u = conv5(sg(conv4(norm2(y))))                     // C -> ffn -> ffn/2 -> C
//	out = y + dropout2(u) * gamma
//
// where sca(v) = v * conv(pool(v)) is the simplified channel attention.
// beta and gamma ([1, C, 1, 1]) start at zero, so a new block is the identity.
// Every convolution is Lipschitz-normed.
type NAFBlock[B tensor.Backend] struct {
	channels int

	norm1, norm2 *nn.LayerNorm2D[B]

	conv1 *nn.Conv2D[B] // 1x1, C -> dw
	conv2 *nn.Conv2D[B] // 3x3 depthwise, dw -> dw
	conv3 *nn.Conv2D[B] // 1x1, dw/2 -> C
	conv4 *nn.Conv2D[B] // 1x1, C -> ffn
	conv5 *nn.Conv2D[B] // 1x1, ffn/2 -> C

	pad *nn.CircularPad[B]
	sg  *nn.SimpleGate[B]

	scaConv *nn.Conv2D[B]     // 1x1, dw/2 -> dw/2
	sca     *nn.Sequential[B] // pool, scaConv

	dropout1, dropout2 *nn.Dropout[B]

	beta, gamma *nn.Parameter[B]
}

// NewNAFBlock creates a NAFBlock over c channels.
//
// Parameters:
//   - c: Number of input/output channels
//   - cfg: Expansion factors and dropout rate
//   - rng: Random source for weight and LipNorm initialization
//   - backend: Backend for computation
//
// Returns an ErrConfig-wrapped error for an invalid configuration.
func NewNAFBlock[B tensor.Backend](c int, cfg BlockConfig, rng *rand.Rand, backend B) (*NAFBlock[B], error) {
	if c <= 0 {
		return nil, fmt.Errorf("nafblock: channels must be positive, got %d: %w", c, ErrConfig)
	}
	if err := cfg.Validate(c); err != nil {
		return nil, fmt.Errorf("nafblock: %w", err)
	}

	dw := c * cfg.DWExpand
	ffn := c * cfg.FFNExpand

	b := &NAFBlock[B]{channels: c}

	var err error
	convs := []struct {
		dst                **nn.Conv2D[B]
		in, out, k, groups int
	}{
		{&b.conv1, c, dw, 1, 1},
		{&b.conv2, dw, dw, 3, dw},
		{&b.conv3, dw / 2, c, 1, 1},
		{&b.scaConv, dw / 2, dw / 2, 1, 1},
		{&b.conv4, c, ffn, 1, 1},
		{&b.conv5, ffn / 2, c, 1, 1},
	}
	for _, cs := range convs {
		if *cs.dst, err = newLipConv(cs.in, cs.out, cs.k, 1, cs.groups, true, rng, backend); err != nil {
			return nil, fmt.Errorf("nafblock: %w", err)
		}
	}

	if b.pad, err = nn.NewCircularPad[B](3, 3, 1, 1); err != nil {
		return nil, fmt.Errorf("nafblock: %w", err)
	}
	b.sg = nn.NewSimpleGate[B]()
	b.sca = nn.NewSequential[B](nn.NewGlobalAvgPool2D[B](), b.scaConv)

	b.norm1 = nn.NewLayerNorm2D(c, layerNormEps, backend)
	b.norm2 = nn.NewLayerNorm2D(c, layerNormEps, backend)

	if b.dropout1, err = nn.NewDropout[B](cfg.DropOutRate, rng); err != nil {
		return nil, fmt.Errorf("nafblock: %w", err)
	}
	if b.dropout2, err = nn.NewDropout[B](cfg.DropOutRate, rng); err != nil {
		return nil, fmt.Errorf("nafblock: %w", err)
	}

	b.beta = nn.NewParameter("beta", tensor.Zeros(tensor.Shape{1, c, 1, 1}, backend))
	b.gamma = nn.NewParameter("gamma", tensor.Zeros(tensor.Shape{1, c, 1, 1}, backend))

	return b, nil
}

// newLipConv creates a square-kernel convolution with a LipNorm on its weight.
func newLipConv[B tensor.Backend](in, out, kernel, stride, groups int, bias bool, rng *rand.Rand, backend B) (*nn.Conv2D[B], error) {
	conv := nn.NewConv2D(in, out, kernel, kernel, stride, groups, bias, rng, backend)
	if _, err := nn.WrapLipNorm[B](conv, "weight", rng); err != nil {
		return nil, err
	}
	return conv, nil
}

// Forward runs the block on x [N, C, H, W].
func (b *NAFBlock[B]) Forward(inp *tensor.Tensor[B]) *tensor.Tensor[B] {
	inp.MustBe4D("nafblock", b.channels)

	x := b.norm1.Forward(inp)
	x = b.conv1.Forward(x)
	x = b.conv2.Forward(b.pad.Forward(x))
	x = b.sg.Forward(x)
	x = x.Mul(b.sca.Forward(x))
	x = b.conv3.Forward(x)
	x = b.dropout1.Forward(x)

	y := inp.Add(x.Mul(b.beta.Tensor()))

	x = b.conv4.Forward(b.norm2.Forward(y))
	x = b.sg.Forward(x)
	x = b.conv5.Forward(x)
	x = b.dropout2.Forward(x)

	return y.Add(x.Mul(b.gamma.Tensor()))
}

// SetPool replaces the pooling layer of the channel attention.
// The replacement must produce [N, C, 1, 1] or [N, C, H, W].
func (b *NAFBlock[B]) SetPool(pool nn.Module[B]) {
	b.sca = nn.NewSequential[B](pool, b.scaConv)
}

// Pool returns the pooling layer of the channel attention.
func (b *NAFBlock[B]) Pool() nn.Module[B] {
	return b.sca.Module(0)
}

// Channels returns the number of input/output channels.
func (b *NAFBlock[B]) Channels() int {
	return b.channels
}

// Beta returns the residual scale of the first branch.
func (b *NAFBlock[B]) Beta() *nn.Parameter[B] {
	return b.beta
}

// Gamma returns the residual scale of the second branch.
func (b *NAFBlock[B]) Gamma() *nn.Parameter[B] {
	return b.gamma
}

// Convs returns the block's convolutions in state-dict order:
// conv1, conv2, conv3, sca, conv4, conv5.
func (b *NAFBlock[B]) Convs() []*nn.Conv2D[B] {
	return []*nn.Conv2D[B]{b.conv1, b.conv2, b.conv3, b.scaConv, b.conv4, b.conv5}
}

func (b *NAFBlock[B]) children() []child[B] {
	return []child[B]{
		{"conv1", b.conv1},
		{"conv2", b.conv2},
		{"conv3", b.conv3},
		{"sca", b.sca},
		{"conv4", b.conv4},
		{"conv5", b.conv5},
		{"norm1", b.norm1},
		{"norm2", b.norm2},
	}
}

// Parameters returns beta, gamma and the parameters of every submodule.
func (b *NAFBlock[B]) Parameters() []*nn.Parameter[B] {
	params := []*nn.Parameter[B]{b.beta, b.gamma}
	for _, c := range b.children() {
		params = append(params, c.module.Parameters()...)
	}
	return params
}

// StateDict returns the block's parameters under PyTorch-compatible names
// ("beta", "conv1.bias", "sca.1.parametrizations.weight.original", ...).
func (b *NAFBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"beta":  b.beta.Tensor().Raw(),
		"gamma": b.gamma.Tensor().Raw(),
	}
	for _, c := range b.children() {
		nn.Merge(stateDict, nn.WithPrefix(c.name, c.module.StateDict()))
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (b *NAFBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range []*nn.Parameter[B]{b.beta, b.gamma} {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q", p.Name())
		}
		if err := p.Load(raw); err != nil {
			return err
		}
	}
	for _, c := range b.children() {
		if err := c.module.LoadStateDict(nn.SubDict(c.name, stateDict)); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// SetTraining enables or disables dropout.
func (b *NAFBlock[B]) SetTraining(training bool) {
	b.dropout1.SetTraining(training)
	b.dropout2.SetTraining(training)
}

func (b *NAFBlock[B]) String() string {
	return fmt.Sprintf("NAFBlock(c=%d, dw=%d, ffn=%d)", b.channels, b.conv1.OutChannels(), b.conv4.OutChannels())
}
