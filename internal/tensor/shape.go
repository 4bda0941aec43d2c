package tensor

import (
	"fmt"
	"slices"
)

// Shape holds tensor dimensions. Image tensors are NCHW: [batch, channels, height, width].
type Shape []int

// NumElements is the product of all dimensions. A rank-0 shape holds one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("shape %v: dimension %d is %d, want > 0", s, i, s[i])
	}
	return nil
}

// Equal reports whether both shapes have the same rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// NCHW unpacks a 4D shape. It panics for any other rank.
func (s Shape) NCHW() (n, c, h, w int) {
	if len(s) != 4 {
		panic(fmt.Sprintf("expected 4D shape [N,C,H,W], got %v", s))
	}
	return s[0], s[1], s[2], s[3]
}

// ComputeStrides returns row-major strides: the last axis is contiguous.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy broadcasting to a and b. Axes are aligned from
// the right, a missing leading axis counts as 1, and a size-1 axis stretches to
// match the other operand. The flag is false only when a and b are identical.
//
//	[1 16 1 1] x [4 16 32 32] -> [4 16 32 32], true
//	[4 16 32 32] x [4 32 32 32] -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	stretched := len(a) != len(b)

	dim := func(s Shape, axis int) int {
		if i := axis - (rank - len(s)); i >= 0 {
			return s[i]
		}
		return 1
	}

	for axis := range rank {
		da, db := dim(a, axis), dim(b, axis)
		switch {
		case da == db:
			out[axis] = da
		case da == 1:
			out[axis] = db
			stretched = true
		case db == 1:
			out[axis] = da
			stretched = true
		default:
			return nil, false, fmt.Errorf("cannot broadcast %v with %v: axis %d is %d vs %d", a, b, axis, da, db)
		}
	}
	return out, stretched, nil
}
