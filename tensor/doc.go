// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the NAFNet module.
//
// # Overview
//
// Tensors are float32, row-major and usually four-dimensional in the NCHW
// layout [batch, channels, height, width]. This package provides:
//   - Generic backend-parametrized tensors (Tensor[B])
//   - NumPy-style broadcasting for Add and Mul
//   - The image ops a restoration network needs: grouped convolution,
//     circular padding, cropping, pixel shuffle, pooling and channel layer-norm
//
// # Basic Usage
//
//	import (
//	    "github.com/zhongruiw/NAFNet/tensor"
//	    "github.com/zhongruiw/NAFNet/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros(tensor.Shape{1, 3, 64, 64}, backend)
//	    y := x.PadCircular(1, 1, 1, 1) // [1, 3, 66, 66]
//	}
//
// # Errors
//
// Shape violations inside an op are programming errors and panic with an
// op-prefixed message ("conv2d: ..."). Constructors that take user data,
// such as FromSlice, return errors instead.
package tensor
