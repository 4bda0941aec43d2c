package nn

import (
	"math"
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// KaimingUniform initializes a weight the way PyTorch's convolution layers do.
//
// Values are drawn from U(-bound, bound) with bound = 1/sqrt(fan_in), which
// is kaiming_uniform with a = sqrt(5).
//
// Parameters:
//   - fanIn: Number of inputs feeding one output (in_channels/groups * K_h * K_w)
//   - shape: Shape of the weight tensor
//   - rng: Random source; a seeded rng makes initialization reproducible
//   - backend: Backend to use for tensor creation
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	return Uniform(1/math.Sqrt(float64(fanIn)), shape, rng, backend)
}

// Uniform creates a tensor with values drawn from U(-bound, bound).
//
// Convolution biases use it with bound = 1/sqrt(fan_in).
func Uniform[B tensor.Backend](bound float64, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	t := tensor.Zeros(shape, backend)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}
