package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// ErrNoSuchParameter is returned when a parametrization targets a tensor a module does not have.
var ErrNoSuchParameter = errors.New("no such parameter")

// softplusThreshold is the input above which softplus is treated as linear.
const softplusThreshold = 20

// Softplus computes log(1 + exp(x)), returning x itself for x > 20.
func Softplus(x float32) float32 {
	if x > softplusThreshold {
		return x
	}
	return float32(math.Log1p(math.Exp(float64(x))))
}

// LipschitzNorm rescales each output row of weight so its absolute sum is at
// most softplus(c).
//
// weight is viewed as [outChannels, rest]. For row i:
//
//	rowsum_i = Σ_j |W[i, j]|
//	scale_i  = min(1, softplus(c) / rowsum_i)
//
// A zero row keeps scale 1. The result is a new slice; weight is not modified.
// Panics if len(weight) is not a multiple of outChannels.
func LipschitzNorm(weight []float32, outChannels int, c float32) []float32 {
	if outChannels <= 0 || len(weight)%outChannels != 0 {
		panic(fmt.Sprintf("lipnorm: %d weights cannot be split into %d rows", len(weight), outChannels))
	}

	bound := float64(Softplus(c))
	cols := len(weight) / outChannels
	out := make([]float32, len(weight))

	for i := 0; i < outChannels; i++ {
		row := weight[i*cols : (i+1)*cols]

		var rowSum float64
		for _, v := range row {
			rowSum += math.Abs(float64(v))
		}

		scale := 1.0
		if rowSum > 0 {
			scale = math.Min(1, bound/rowSum)
		}

		dst := out[i*cols : (i+1)*cols]
		for j, v := range row {
			dst[j] = float32(float64(v) * scale)
		}
	}

	return out
}

// Parametrization computes the effective value of a module tensor from its
// stored raw value on every access.
type Parametrization[B tensor.Backend] interface {
	// Apply returns the effective tensor for raw. raw is not modified.
	Apply(raw *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns the parametrization's own parameters.
	Parameters() []*Parameter[B]
}

// Parametrizable is implemented by modules that accept a parametrization on
// one of their named tensors.
type Parametrizable[B tensor.Backend] interface {
	Parametrize(name string, p Parametrization[B]) error
}

// LipNorm is the Lipschitz weight parametrization.
//
// It owns one learnable scalar c (state-dict key "ci", shape [1]) and bounds
// every output row of the weight to an absolute sum of softplus(c).
type LipNorm[B tensor.Backend] struct {
	c *Parameter[B]
}

// NewLipNorm creates a LipNorm with c drawn from N(0, 1).
func NewLipNorm[B tensor.Backend](rng *rand.Rand, backend B) *LipNorm[B] {
	return &LipNorm[B]{
		c: NewParameter("ci", tensor.Randn(tensor.Shape{1}, rng, backend)),
	}
}

// C returns the current value of the learnable bound parameter.
func (l *LipNorm[B]) C() float32 {
	return l.c.Tensor().Data()[0]
}

// Apply returns the Lipschitz-normalized copy of raw.
func (l *LipNorm[B]) Apply(raw *tensor.Tensor[B]) *tensor.Tensor[B] {
	data := LipschitzNorm(raw.Data(), raw.Shape()[0], l.C())
	out, err := tensor.FromSlice(data, raw.Shape(), raw.Backend())
	if err != nil {
		panic(err)
	}
	return out
}

// Parameters returns the bound parameter c.
func (l *LipNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.c}
}

// WrapLipNorm attaches a fresh LipNorm to the tensor called name of module.
//
// Returns ErrNoSuchParameter when the module does not accept parametrizations
// or has no tensor with that name.
//
// Example:
//
//	conv := nn.NewConv2D(16, 32, 3, 3, 1, 1, true, rng, backend)
//	if _, err := nn.WrapLipNorm[B](conv, "weight", rng); err != nil {
//	    return err
//	}
func WrapLipNorm[B tensor.Backend](module Module[B], name string, rng *rand.Rand) (*LipNorm[B], error) {
	target, ok := module.(Parametrizable[B])
	if !ok {
		return nil, fmt.Errorf("lipnorm: %T has no parametrizable tensor %q: %w", module, name, ErrNoSuchParameter)
	}

	params := module.Parameters()
	if len(params) == 0 {
		return nil, fmt.Errorf("lipnorm: %T has no tensor %q: %w", module, name, ErrNoSuchParameter)
	}

	lip := NewLipNorm(rng, params[0].Tensor().Backend())
	if err := target.Parametrize(name, lip); err != nil {
		return nil, fmt.Errorf("lipnorm: %w", err)
	}
	return lip, nil
}
