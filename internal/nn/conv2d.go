package nn

import (
	"fmt"
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Conv2D is a grouped 2D convolutional layer without implicit padding.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height - kernel_h) / stride + 1
//	out_w = (width - kernel_w) / stride + 1
//
// Padding is applied by a separate module (see CircularPad). The weight
// and bias may carry parametrizations (see Parametrize); the effective
// tensors are recomputed from the stored ones on every forward.
//
// Example:
//
//	// Depthwise 3x3 conv over 64 channels
//	conv := nn.NewConv2D(64, 64, 3, 3, 1, 64, true, rng, backend)
//	output := conv.Forward(pad.Forward(input))
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	groups      int

	weight *Parameter[B] // [out_channels, in_channels/groups, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels] or nil

	parametrizations map[string][]Parametrization[B]

	backend B
}

// NewConv2D creates a new 2D convolutional layer with PyTorch's default initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelH, kernelW: Kernel dimensions
//   - stride: Stride for convolution (commonly 1 or 2)
//   - groups: Number of channel groups (1 for dense, inChannels for depthwise)
//   - useBias: Whether to include bias term
//   - rng: Random source for initialization
//   - backend: Backend for computation
//
// Initialization:
//   - Weights: U(-1/sqrt(fan_in), 1/sqrt(fan_in)), fan_in = in_channels/groups * kernel_h * kernel_w
//   - Bias: same bound as the weights
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, groups int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if groups <= 0 || inChannels%groups != 0 || outChannels%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d, out=%d not divisible by groups=%d", inChannels, outChannels, groups))
	}

	fanIn := inChannels / groups * kernelH * kernelW
	weight := KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels / groups, kernelH, kernelW}, rng, backend)

	var biasParam *Parameter[B]
	if useBias {
		bias := KaimingUniform(fanIn, tensor.Shape{outChannels}, rng, backend)
		biasParam = NewParameter("bias", bias)
	}

	return &Conv2D[B]{
		inChannels:       inChannels,
		outChannels:      outChannels,
		kernelSize:       [2]int{kernelH, kernelW},
		stride:           stride,
		groups:           groups,
		weight:           NewParameter("weight", weight),
		bias:             biasParam,
		parametrizations: make(map[string][]Parametrization[B]),
		backend:          backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	input.MustBe4D("conv2d", c.inChannels)

	output := input.Conv2D(c.Weight(), c.stride, c.groups)

	if c.bias != nil {
		// Bias [out_channels] broadcasts as [1, out_channels, 1, 1]
		output = output.Add(c.Bias().Reshape(1, c.outChannels, 1, 1))
	}

	return output
}

// Weight returns the effective weight, after any parametrization.
func (c *Conv2D[B]) Weight() *tensor.Tensor[B] {
	return c.effective("weight", c.weight)
}

// Bias returns the effective bias, or nil when the layer has none.
func (c *Conv2D[B]) Bias() *tensor.Tensor[B] {
	if c.bias == nil {
		return nil
	}
	return c.effective("bias", c.bias)
}

// RawWeight returns the stored (unconstrained) weight parameter.
func (c *Conv2D[B]) RawWeight() *Parameter[B] {
	return c.weight
}

func (c *Conv2D[B]) effective(name string, p *Parameter[B]) *tensor.Tensor[B] {
	t := p.Tensor()
	for _, fn := range c.parametrizations[name] {
		t = fn.Apply(t)
	}
	return t
}

// Parametrize registers p on the tensor called name ("weight" or "bias").
//
// State-dict keys follow PyTorch's parametrize module: the stored tensor
// becomes "parametrizations.<name>.original" and the parametrization's own
// parameters "parametrizations.<name>.<index>.<param>".
func (c *Conv2D[B]) Parametrize(name string, p Parametrization[B]) error {
	var target *Parameter[B]
	switch name {
	case "weight":
		target = c.weight
	case "bias":
		target = c.bias
	}
	if target == nil {
		return fmt.Errorf("conv2d has no tensor %q: %w", name, ErrNoSuchParameter)
	}

	index := len(c.parametrizations[name])
	target.rename(fmt.Sprintf("parametrizations.%s.original", name))
	for _, param := range p.Parameters() {
		param.rename(fmt.Sprintf("parametrizations.%s.%d.%s", name, index, param.Name()))
	}
	c.parametrizations[name] = append(c.parametrizations[name], p)
	return nil
}

// Parameters returns all trainable parameters, including parametrization parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	params := []*Parameter[B]{c.weight}
	if c.bias != nil {
		params = append(params, c.bias)
	}
	for _, name := range []string{"weight", "bias"} {
		for _, p := range c.parametrizations[name] {
			params = append(params, p.Parameters()...)
		}
	}
	return params
}

// StateDict returns the layer's parameters keyed by name.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	return stateDictOf(c.Parameters())
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(c.Parameters(), stateDict)
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, groups=%d, bias=%v)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.groups, c.bias != nil)
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// KernelSize returns the kernel size [height, width].
func (c *Conv2D[B]) KernelSize() [2]int {
	return c.kernelSize
}

// Stride returns the stride.
func (c *Conv2D[B]) Stride() int {
	return c.stride
}

// Groups returns the number of channel groups.
func (c *Conv2D[B]) Groups() int {
	return c.groups
}
