package cpu

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// PixelShuffle rearranges channel blocks into space.
//
// Input:  [N, C*r*r, H, W]
// Output: [N, C, H*r, W*r]
//
//	out[n, c, h*r+i, w*r+j] = x[n, c*r*r + i*r + j, h, w]
func (cpu *CPUBackend) PixelShuffle(x *tensor.RawTensor, factor int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("pixel_shuffle: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if factor <= 0 {
		panic(fmt.Sprintf("pixel_shuffle: invalid upscale factor %d", factor))
	}

	N, CIn, H, W := shape.NCHW()
	r2 := factor * factor
	if CIn%r2 != 0 {
		panic(fmt.Sprintf("pixel_shuffle: channels %d not divisible by factor^2=%d", CIn, r2))
	}

	C := CIn / r2
	HOut, WOut := H*factor, W*factor
	result := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, cpu.device)
	src, dst := x.Data(), result.Data()

	parallel.ForBatch(N, C, func(n, c int) {
		out := dst[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		for i := 0; i < factor; i++ {
			for j := 0; j < factor; j++ {
				ic := c*r2 + i*factor + j
				in := src[(n*CIn+ic)*H*W : (n*CIn+ic+1)*H*W]
				for h := 0; h < H; h++ {
					orow := out[(h*factor+i)*WOut:]
					irow := in[h*W : (h+1)*W]
					for w, v := range irow {
						orow[w*factor+j] = v
					}
				}
			}
		}
	}, cpu.par)

	return result
}
