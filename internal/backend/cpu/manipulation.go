package cpu

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Chunk splits a tensor into n equal parts along dimension dim.
//
// Example:
//
//	x: [4, 64, 32, 32]
//	Chunk(x, 2, 1) → two tensors of [4, 32, 32, 32]
//
// Panics if the dimension is not divisible by n.
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("chunk: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if n <= 0 {
		panic(fmt.Sprintf("chunk: n must be positive, got %d", n))
	}
	if shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d (size %d) not divisible by %d", dim, shape[dim], n))
	}

	chunkSize := shape[dim] / n
	outShape := shape.Clone()
	outShape[dim] = chunkSize

	// Everything before dim is an outer loop; everything after dim is contiguous.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < ndim; i++ {
		inner *= shape[i]
	}

	src := x.Data()
	block := chunkSize * inner
	results := make([]*tensor.RawTensor, n)
	for k := 0; k < n; k++ {
		part := tensor.MustRaw(outShape, cpu.device)
		dst := part.Data()
		for o := 0; o < outer; o++ {
			from := o*shape[dim]*inner + k*block
			copy(dst[o*block:(o+1)*block], src[from:from+block])
		}
		results[k] = part
	}

	return results
}
