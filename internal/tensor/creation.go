package tensor

import (
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{1, 16, 1, 1}, backend)
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New(raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(Shape{3, 3}, 3.14, backend)
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
// Passing a seeded rng makes the result reproducible.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	t := tensor.Randn(Shape{4, 1, 960, 240}, rng, backend)
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Rand creates a tensor with values uniformly distributed in [0, 1) using rng.
func Rand[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = rng.Float32()
	}
	return t
}
