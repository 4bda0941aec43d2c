// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 64, 64} is a batch of two 3-channel 64×64 images.
type Shape = tensor.Shape

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only supported device.
const CPU Device = tensor.CPU

// RawTensor is the low-level contiguous float32 buffer backends operate on.
type RawTensor = tensor.RawTensor

// Backend is the interface every compute backend implements.
type Backend = tensor.Backend

// Tensor is a float32 tensor bound to backend B.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn(tensor.Shape{1, 1, 8, 8}, rng, backend)
//	y := x.Add(x).MulScalar(0.5)
type Tensor[B Backend] = tensor.Tensor[B]

// New wraps a RawTensor for backend b.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return tensor.New(raw, b)
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, device)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Zeros(shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Ones(shape, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Randn(shape, rng, b)
}

// Rand creates a tensor of uniform [0, 1) samples drawn from rng.
func Rand[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Rand(shape, rng, b)
}
