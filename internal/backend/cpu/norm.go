package cpu

import (
	"fmt"
	"math"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// LayerNorm2D normalizes an NCHW tensor across its channel axis.
//
// For every (n, h, w):
//
//	mu  = mean_c x[n, :, h, w]
//	var = mean_c (x[n, :, h, w] - mu)^2
//	y[n, c, h, w] = weight[c] * (x[n, c, h, w] - mu) / sqrt(var + eps) + bias[c]
//
// Statistics are accumulated in float64.
func (cpu *CPUBackend) LayerNorm2D(x, weight, bias *tensor.RawTensor, epsilon float32) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("layernorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	N, C, H, W := shape.NCHW()
	if weight.NumElements() != C || bias.NumElements() != C {
		panic(fmt.Sprintf("layernorm2d: weight/bias sizes %d/%d != channels %d",
			weight.NumElements(), bias.NumElements(), C))
	}

	plane := H * W
	result := tensor.MustRaw(shape, cpu.device)
	src, dst := x.Data(), result.Data()
	gamma, beta := weight.Data(), bias.Data()
	eps := float64(epsilon)

	// One work item per image row.
	parallel.ForBatch(N, H, func(n, h int) {
		base := n*C*plane + h*W
		for w := 0; w < W; w++ {
			p := base + w

			var mean float64
			for c := 0; c < C; c++ {
				mean += float64(src[p+c*plane])
			}
			mean /= float64(C)

			var variance float64
			for c := 0; c < C; c++ {
				d := float64(src[p+c*plane]) - mean
				variance += d * d
			}
			variance /= float64(C)

			inv := 1 / math.Sqrt(variance+eps)
			for c := 0; c < C; c++ {
				y := (float64(src[p+c*plane]) - mean) * inv
				dst[p+c*plane] = float32(y)*gamma[c] + beta[c]
			}
		}
	}, cpu.par)

	return result
}
