package tensor

import (
	"fmt"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation used by backends.
//
// Data is a contiguous float32 buffer in row-major order. Activations are
// transient and never aliased between layers, so there is no reference counting:
// every backend op allocates its own result.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// MustRaw is like NewRaw but panics on an invalid shape.
// Backends use it for result tensors whose shape they already validated.
func MustRaw(shape Shape, device Device) *RawTensor {
	raw, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return raw
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * 4
}

// Data returns the underlying float32 buffer.
//
// WARNING: Direct access to underlying memory. Modifications are visible to
// every holder of this RawTensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Clone creates a deep copy of the RawTensor.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		device: r.device,
	}
}

// Reshape returns a RawTensor sharing the same buffer with a new shape.
// The element count must not change.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("reshape: incompatible shapes: %v -> %v (different number of elements)", r.shape, shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: r.device,
	}, nil
}
