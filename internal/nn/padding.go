package nn

import (
	"errors"
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// ErrPadding is returned for kernel/stride/size combinations circular padding cannot serve.
var ErrPadding = errors.New("invalid circular padding")

// CircularPad pads the spatial axes of an NCHW tensor with wrap-around content
// so that a following unpadded convolution with the same kernel and stride
// produces a "same"-sized output.
//
// The amount per axis, for a dimension of size D, kernel k and stride s, is
//
//	p = (D - 1 - (D - k) / s) / 2
//
// which requires (D - k) to be divisible by s. For a 3x3 kernel with stride 1
// this is 1 on every side regardless of D.
//
// Example:
//
//	pad, _ := nn.NewCircularPad[B](3, 3, 1, 1)
//	y := conv.Forward(pad.Forward(x)) // same H, W as x
type CircularPad[B tensor.Backend] struct {
	stateless[B]

	kernel [2]int
	stride [2]int
}

// NewCircularPad creates a circular padding layer for the given kernel and stride.
//
// Returns ErrPadding when a kernel size is even or non-positive, or a stride
// is non-positive.
func NewCircularPad[B tensor.Backend](kernelH, kernelW, strideH, strideW int) (*CircularPad[B], error) {
	if kernelH <= 0 || kernelW <= 0 || kernelH%2 == 0 || kernelW%2 == 0 {
		return nil, fmt.Errorf("kernel size %dx%d must be odd: %w", kernelH, kernelW, ErrPadding)
	}
	if strideH <= 0 || strideW <= 0 {
		return nil, fmt.Errorf("stride %dx%d must be positive: %w", strideH, strideW, ErrPadding)
	}
	return &CircularPad[B]{
		kernel: [2]int{kernelH, kernelW},
		stride: [2]int{strideH, strideW},
	}, nil
}

// Amounts returns the per-side padding for an h×w input.
func (p *CircularPad[B]) Amounts(h, w int) (padH, padW int, err error) {
	if padH, err = padAmount(h, p.kernel[0], p.stride[0]); err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	if padW, err = padAmount(w, p.kernel[1], p.stride[1]); err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	return padH, padW, nil
}

func padAmount(dim, kernel, stride int) (int, error) {
	if (dim-kernel)%stride != 0 {
		return 0, fmt.Errorf("size %d with kernel %d is not divisible by stride %d: %w", dim, kernel, stride, ErrPadding)
	}
	return (dim - 1 - (dim-kernel)/stride) / 2, nil
}

// Forward pads x symmetrically by the amounts of Amounts.
// Panics when the input size is incompatible with the stride.
func (p *CircularPad[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	x.MustBe4D("circular_pad", -1)
	shape := x.Shape()
	ph, pw, err := p.Amounts(shape[2], shape[3])
	if err != nil {
		panic(fmt.Sprintf("circular_pad: %v", err))
	}
	return x.PadCircular(ph, ph, pw, pw)
}

func (p *CircularPad[B]) String() string {
	return fmt.Sprintf("CircularPad(kernel_size=(%d, %d), stride=(%d, %d))",
		p.kernel[0], p.kernel[1], p.stride[0], p.stride[1])
}
