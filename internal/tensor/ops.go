package tensor

import "fmt"

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	x := tensor.Randn(Shape{4, 16, 32, 32}, rng, backend)
//	bias := tensor.Zeros(Shape{1, 16, 1, 1}, backend)
//	y := x.Add(bias) // Shape: [4, 16, 32, 32]
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// MulScalar multiplies every element by a scalar.
func (t *Tensor[B]) MulScalar(scalar float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, scalar), t.backend)
}

// Reshape returns a view with the same data and a different shape.
// The new shape must have the same number of elements.
//
// Example:
//
//	bias := tensor.Zeros(Shape{16}, backend)
//	b4 := bias.Reshape(1, 16, 1, 1)
func (t *Tensor[B]) Reshape(newShape ...int) *Tensor[B] {
	raw, err := t.raw.Reshape(Shape(newShape))
	if err != nil {
		panic(err)
	}
	return New(raw, t.backend)
}

// Chunk splits the tensor into n equal parts along dim.
// Panics if the dimension is not divisible by n.
func (t *Tensor[B]) Chunk(n, dim int) []*Tensor[B] {
	parts := t.backend.Chunk(t.raw, n, dim)
	result := make([]*Tensor[B], len(parts))
	for i, p := range parts {
		result[i] = New(p, t.backend)
	}
	return result
}

// Conv2D convolves t [N, C_in, H, W] with kernel [C_out, C_in/groups, K_h, K_w]
// without padding.
func (t *Tensor[B]) Conv2D(kernel *Tensor[B], stride, groups int) *Tensor[B] {
	return New(t.backend.Conv2D(t.raw, kernel.raw, stride, groups), t.backend)
}

// PadCircular pads the two spatial axes with wrap-around content.
func (t *Tensor[B]) PadCircular(top, bottom, left, right int) *Tensor[B] {
	return New(t.backend.PadCircular(t.raw, top, bottom, left, right), t.backend)
}

// Crop keeps the top-left height×width window of each feature map.
func (t *Tensor[B]) Crop(height, width int) *Tensor[B] {
	return New(t.backend.Crop(t.raw, height, width), t.backend)
}

// PixelShuffle rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r].
func (t *Tensor[B]) PixelShuffle(factor int) *Tensor[B] {
	return New(t.backend.PixelShuffle(t.raw, factor), t.backend)
}

// AdaptiveAvgPool2D averages each feature map down to 1×1.
func (t *Tensor[B]) AdaptiveAvgPool2D() *Tensor[B] {
	return New(t.backend.AdaptiveAvgPool2D(t.raw), t.backend)
}

// BoxAvgPool2D averages over a sliding kernelH×kernelW window and replicate-pads
// the result back to the input's spatial size.
func (t *Tensor[B]) BoxAvgPool2D(kernelH, kernelW int) *Tensor[B] {
	return New(t.backend.BoxAvgPool2D(t.raw, kernelH, kernelW), t.backend)
}

// LayerNorm2D normalizes across channels at every spatial location.
func (t *Tensor[B]) LayerNorm2D(weight, bias *Tensor[B], epsilon float32) *Tensor[B] {
	return New(t.backend.LayerNorm2D(t.raw, weight.raw, bias.raw, epsilon), t.backend)
}

// MustBe4D panics unless t is a 4D NCHW tensor with the given channel count.
// A negative channels value skips the channel check.
func (t *Tensor[B]) MustBe4D(op string, channels int) {
	shape := t.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(shape)))
	}
	if channels >= 0 && shape[1] != channels {
		panic(fmt.Sprintf("%s: input channels %d != expected %d", op, shape[1], channels))
	}
}
