package cpu

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// AdaptiveAvgPool2D averages each feature map to a single value.
//
// Input: [N, C, H, W], Output: [N, C, 1, 1].
func (cpu *CPUBackend) AdaptiveAvgPool2D(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("adaptive_avg_pool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	N, C, H, W := shape.NCHW()
	plane := H * W
	result := tensor.MustRaw(tensor.Shape{N, C, 1, 1}, cpu.device)
	src, dst := x.Data(), result.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		var sum float64
		for _, v := range src[(n*C+c)*plane : (n*C+c+1)*plane] {
			sum += float64(v)
		}
		dst[n*C+c] = float32(sum / float64(plane))
	}, cpu.par)

	return result
}

// BoxAvgPool2D computes a sliding-window mean and pads the result back to the
// input size.
//
// The window is clamped to the map (k = min(kernel, dim)). Window sums come
// from a float64 integral image, giving a valid-mode map of
// (H-k_h+1)×(W-k_w+1), which is then replicate-padded symmetrically (extra
// row/column at the bottom/right) to [N, C, H, W].
func (cpu *CPUBackend) BoxAvgPool2D(x *tensor.RawTensor, kernelH, kernelW int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("box_avg_pool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("box_avg_pool2d: invalid kernel %dx%d", kernelH, kernelW))
	}

	N, C, H, W := shape.NCHW()
	k1, k2 := min(H, kernelH), min(W, kernelW)
	vh, vw := H-k1+1, W-k2+1
	padTop, padLeft := (H-vh)/2, (W-vw)/2
	area := float64(k1 * k2)

	result := tensor.MustRaw(shape, cpu.device)
	src, dst := x.Data(), result.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		in := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		out := dst[(n*C+c)*H*W : (n*C+c+1)*H*W]

		// integral[(i)*(W+1)+j] = sum of in[0:i, 0:j]
		stride := W + 1
		integral := make([]float64, (H+1)*stride)
		for i := 0; i < H; i++ {
			var rowSum float64
			for j := 0; j < W; j++ {
				rowSum += float64(in[i*W+j])
				integral[(i+1)*stride+j+1] = integral[i*stride+j+1] + rowSum
			}
		}

		for y := 0; y < H; y++ {
			i := clamp(y-padTop, 0, vh-1)
			for xx := 0; xx < W; xx++ {
				j := clamp(xx-padLeft, 0, vw-1)
				s := integral[(i+k1)*stride+j+k2] - integral[i*stride+j+k2] -
					integral[(i+k1)*stride+j] + integral[i*stride+j]
				out[y*W+xx] = float32(s / area)
			}
		}
	}, cpu.par)

	return result
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
