package nn

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// LayerNorm2D applies Layer Normalization across the channel axis of an NCHW tensor.
//
// Formula, at every spatial location (n, h, w):
//
//	Y[:, c] = weight[c] * (X[:, c] - mean_c(X)) / sqrt(var_c(X) + eps) + bias[c]
//
// The variance is the biased (population) variance over channels.
//
// Example:
//
//	norm := nn.NewLayerNorm2D(32, 1e-6, backend)
//	output := norm.Forward(features) // [N, 32, H, W] -> [N, 32, H, W]
type LayerNorm2D[B tensor.Backend] struct {
	Weight   *Parameter[B] // learnable scale [channels]
	Bias     *Parameter[B] // learnable shift [channels]
	Epsilon  float32       // numerical stability constant
	channels int
}

// NewLayerNorm2D creates a new LayerNorm2D layer.
//
// The weight is initialized to ones, the bias to zeros.
func NewLayerNorm2D[B tensor.Backend](channels int, epsilon float32, backend B) *LayerNorm2D[B] {
	return &LayerNorm2D[B]{
		Weight:   NewParameter("weight", tensor.Ones(tensor.Shape{channels}, backend)),
		Bias:     NewParameter("bias", tensor.Zeros(tensor.Shape{channels}, backend)),
		Epsilon:  epsilon,
		channels: channels,
	}
}

// Forward normalizes x [N, C, H, W] over C.
func (l *LayerNorm2D[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	x.MustBe4D("layernorm2d", l.channels)
	return x.LayerNorm2D(l.Weight.Tensor(), l.Bias.Tensor(), l.Epsilon)
}

// Parameters returns [weight, bias].
func (l *LayerNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Weight, l.Bias}
}

// StateDict returns the layer's parameters keyed by name.
func (l *LayerNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return stateDictOf(l.Parameters())
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LayerNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParameters(l.Parameters(), stateDict)
}

func (l *LayerNorm2D[B]) String() string {
	return fmt.Sprintf("LayerNorm2D(%d, eps=%g)", l.channels, l.Epsilon)
}
