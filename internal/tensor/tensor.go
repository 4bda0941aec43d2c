package tensor

import (
	"fmt"
	"math"
)

// Tensor is a float32 tensor bound to a computation backend B.
//
// Type Parameters:
//   - B: Computation backend (must implement Backend interface)
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{1, 3, 64, 64}, backend)
//	result := t.Add(t)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a Tensor from a RawTensor and backend.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{
		raw:     raw,
		backend: b,
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data)

	return New(raw, b), nil
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// Device returns the tensor's compute device.
func (t *Tensor[B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
// Used by backend implementations for low-level operations.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the tensor's data (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.Data()
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
//
// Example:
//
//	t := tensor.Zeros(Shape{1, 3, 4, 4}, backend)
//	value := t.At(0, 2, 1, 3)
func (t *Tensor[B]) At(indices ...int) float32 {
	return t.Data()[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[B]) Set(value float32, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor[float32]%v on %s", t.raw.Shape(), t.raw.Device())
}

// Clone creates a deep copy of the tensor.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// IsFinite reports whether every element is neither NaN nor ±Inf.
func (t *Tensor[B]) IsFinite() bool {
	for _, v := range t.Data() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
