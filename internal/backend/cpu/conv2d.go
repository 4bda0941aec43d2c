package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Conv2D performs a grouped 2D convolution without padding.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where out_h = (height - kernel_h) / stride + 1 (and likewise for width).
// Padding is the caller's job: the network pads circularly before convolving.
//
// Three paths are used:
//   - depthwise (groups == in_channels == out_channels): direct loops, one
//     goroutine per (batch, channel)
//   - 1×1 stride-1 kernels: the input plane already is the column matrix, GEMM only
//   - everything else: im2col per (batch, group), then GEMM
//
// The GEMM is gonum's blas32.Gemm: kernel [C_out/g, C_in/g*K_h*K_w] ×
// col [C_in/g*K_h*K_w, out_h*out_w] written straight into the output planes.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, groups int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid groups %d", groups))
	}

	N, CIn, H, W := inputShape.NCHW()
	COut, CInK, KH, KW := kernelShape.NCHW()

	if CIn%groups != 0 || COut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels in=%d, out=%d not divisible by groups=%d", CIn, COut, groups))
	}
	if CInK != CIn/groups {
		panic(fmt.Sprintf("conv2d: input channels %d/groups %d != kernel channels %d", CIn, groups, CInK))
	}

	HOut := (H-KH)/stride + 1
	WOut := (W-KW)/stride + 1
	if H < KH || W < KW || HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: input %dx%d smaller than kernel %dx%d", H, W, KH, KW))
	}

	output := tensor.MustRaw(tensor.Shape{N, COut, HOut, WOut}, cpu.device)

	g := convGeom{
		n: N, cin: CIn, h: H, w: W,
		cout: COut, kh: KH, kw: KW,
		hout: HOut, wout: WOut,
		stride: stride, groups: groups,
	}

	switch {
	case groups == CIn && COut == CIn:
		conv2dDepthwise(output.Data(), input.Data(), kernel.Data(), g, cpu.par)
	default:
		conv2dGEMM(output.Data(), input.Data(), kernel.Data(), g, cpu.par)
	}

	return output
}

// convGeom carries the static geometry of one convolution call.
type convGeom struct {
	n, cin, h, w   int
	cout, kh, kw   int
	hout, wout     int
	stride, groups int
}

// conv2dDepthwise convolves every channel with its own K_h×K_w filter.
func conv2dDepthwise(out, in, kernel []float32, g convGeom, cfg parallel.Config) {
	inPlane := g.h * g.w
	outPlane := g.hout * g.wout
	kPlane := g.kh * g.kw

	parallel.ForBatch(g.n, g.cin, func(b, c int) {
		src := in[(b*g.cin+c)*inPlane : (b*g.cin+c+1)*inPlane]
		dst := out[(b*g.cout+c)*outPlane : (b*g.cout+c+1)*outPlane]
		k := kernel[c*kPlane : (c+1)*kPlane]

		for oh := 0; oh < g.hout; oh++ {
			row := oh * g.stride
			for ow := 0; ow < g.wout; ow++ {
				col := ow * g.stride
				var sum float32
				for i := 0; i < g.kh; i++ {
					base := (row+i)*g.w + col
					kr := k[i*g.kw : (i+1)*g.kw]
					for j, kv := range kr {
						sum += src[base+j] * kv
					}
				}
				dst[oh*g.wout+ow] = sum
			}
		}
	}, cfg)
}

// conv2dGEMM lowers each (batch, group) slice to a single GEMM.
func conv2dGEMM(out, in, kernel []float32, g convGeom, cfg parallel.Config) {
	cinG := g.cin / g.groups
	coutG := g.cout / g.groups
	patch := cinG * g.kh * g.kw
	inPlane := g.h * g.w
	outPlane := g.hout * g.wout

	pointwise := g.kh == 1 && g.kw == 1 && g.stride == 1

	var col []float32
	if !pointwise {
		col = make([]float32, patch*outPlane)
	}

	for b := 0; b < g.n; b++ {
		for grp := 0; grp < g.groups; grp++ {
			inBase := (b*g.cin + grp*cinG) * inPlane
			src := in[inBase : inBase+cinG*inPlane]

			colData := src
			if !pointwise {
				im2col(col, src, cinG, g, cfg)
				colData = col
			}

			a := blas32.General{
				Rows:   coutG,
				Cols:   patch,
				Stride: patch,
				Data:   kernel[grp*coutG*patch : (grp+1)*coutG*patch],
			}
			bm := blas32.General{
				Rows:   patch,
				Cols:   outPlane,
				Stride: outPlane,
				Data:   colData,
			}
			outBase := (b*g.cout + grp*coutG) * outPlane
			c := blas32.General{
				Rows:   coutG,
				Cols:   outPlane,
				Stride: outPlane,
				Data:   out[outBase : outBase+coutG*outPlane],
			}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, bm, 0, c)
		}
	}
}

// im2col fills col [channels*K_h*K_w, out_h*out_w] from src [channels, H, W].
//
// Row r = (c, i, j) holds, for every output position, the input pixel under
// kernel tap (i, j) of channel c. No padding: every tap is in bounds.
func im2col(col, src []float32, channels int, g convGeom, cfg parallel.Config) {
	inPlane := g.h * g.w
	outPlane := g.hout * g.wout
	taps := g.kh * g.kw

	parallel.For(channels*taps, func(r int) {
		c := r / taps
		i := (r % taps) / g.kw
		j := r % g.kw

		plane := src[c*inPlane : (c+1)*inPlane]
		dst := col[r*outPlane : (r+1)*outPlane]
		for oh := 0; oh < g.hout; oh++ {
			srcRow := (oh*g.stride + i) * g.w
			dstRow := oh * g.wout
			for ow := 0; ow < g.wout; ow++ {
				dst[dstRow+ow] = plane[srcRow+ow*g.stride+j]
			}
		}
	}, cfg)
}
