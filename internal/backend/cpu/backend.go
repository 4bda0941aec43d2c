// Package cpu implements the CPU backend with gonum BLAS integration.
package cpu

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Per-(batch, channel) loops are split across goroutines according to par;
// dense convolutions go through gonum's float32 GEMM.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend sized to the host.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Parallelism returns the worker configuration in use.
func (cpu *CPUBackend) Parallelism() parallel.Config {
	return cpu.par
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), cpu.device)
	dst := result.Data()
	for i, v := range x.Data() {
		dst[i] = v * scalar
	}
	return result
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := tensor.MustRaw(outShape, cpu.device)

	switch {
	case !needsBroadcast:
		// Fast path: identical shapes
		dst, x, y := result.Data(), a.Data(), b.Data()
		for i := range dst {
			dst[i] = f(x[i], y[i])
		}
	case isChannelVector(b.Shape(), outShape) && a.Shape().Equal(outShape):
		// [N,C,H,W] op [N|1,C,1,1]: per-channel scalar, the hot path of
		// bias, beta/gamma and channel attention.
		cpu.channelBroadcast(result, a, b, f)
	default:
		binaryWithBroadcast(result, a, b, outShape, f)
	}

	return result
}

// isChannelVector reports whether s is [N|1, C, 1, 1] relative to a 4D out shape.
func isChannelVector(s, out tensor.Shape) bool {
	if len(s) != 4 || len(out) != 4 {
		return false
	}
	return (s[0] == 1 || s[0] == out[0]) && s[1] == out[1] && s[2] == 1 && s[3] == 1
}

func (cpu *CPUBackend) channelBroadcast(result, a, b *tensor.RawTensor, f func(x, y float32) float32) {
	n, c, h, w := result.Shape().NCHW()
	plane := h * w
	bBatched := b.Shape()[0] != 1
	dst, x, y := result.Data(), a.Data(), b.Data()

	parallel.ForBatch(n, c, func(bi, ci int) {
		s := y[ci]
		if bBatched {
			s = y[bi*c+ci]
		}
		base := (bi*c + ci) * plane
		for i := base; i < base+plane; i++ {
			dst[i] = f(x[i], s)
		}
	}, cpu.par)
}

// binaryWithBroadcast is the generic strided path for arbitrary broadcasts.
func binaryWithBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape, f func(x, y float32) float32) {
	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)

	dst, x, y := result.Data(), a.Data(), b.Data()
	for i := range dst {
		dst[i] = f(x[computeFlatIndex(i, outStrides, aStrides)], y[computeFlatIndex(i, outStrides, bStrides)])
	}
}
