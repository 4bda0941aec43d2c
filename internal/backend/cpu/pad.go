package cpu

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// PadCircular pads the spatial axes of an NCHW tensor with wrap-around content.
//
// Output shape: [N, C, H+top+bottom, W+left+right], with
//
//	out[n, c, i, j] = x[n, c, (i-top) mod H, (j-left) mod W]
//
// Amounts larger than the dimension keep wrapping, so a 3-pixel-high map can
// be padded by 13 rows.
func (cpu *CPUBackend) PadCircular(x *tensor.RawTensor, top, bottom, left, right int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("pad_circular: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if top < 0 || bottom < 0 || left < 0 || right < 0 {
		panic(fmt.Sprintf("pad_circular: negative padding (%d, %d, %d, %d)", top, bottom, left, right))
	}

	N, C, H, W := shape.NCHW()
	HOut := H + top + bottom
	WOut := W + left + right

	result := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, cpu.device)
	src, dst := x.Data(), result.Data()

	// Source column for every output column, shared by all rows.
	cols := make([]int, WOut)
	for j := range cols {
		cols[j] = wrap(j-left, W)
	}

	parallel.ForBatch(N, C, func(n, c int) {
		in := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		out := dst[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		for i := 0; i < HOut; i++ {
			row := in[wrap(i-top, H)*W : (wrap(i-top, H)+1)*W]
			orow := out[i*WOut : (i+1)*WOut]
			for j, sj := range cols {
				orow[j] = row[sj]
			}
		}
	}, cpu.par)

	return result
}

// Crop keeps the top-left height×width window of every feature map.
func (cpu *CPUBackend) Crop(x *tensor.RawTensor, height, width int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("crop: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	N, C, H, W := shape.NCHW()
	if height <= 0 || width <= 0 || height > H || width > W {
		panic(fmt.Sprintf("crop: window %dx%d outside input %dx%d", height, width, H, W))
	}

	result := tensor.MustRaw(tensor.Shape{N, C, height, width}, cpu.device)
	src, dst := x.Data(), result.Data()

	for p := 0; p < N*C; p++ {
		for i := 0; i < height; i++ {
			copy(dst[(p*height+i)*width:(p*height+i+1)*width], src[(p*H+i)*W:(p*H+i)*W+width])
		}
	}

	return result
}

// wrap returns i modulo n in [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
