// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col + BLAS GEMM convolutions (gonum), with direct loops for
//     depthwise and pointwise kernels
//   - Batch×channel parallelism sized from the detected CPU topology
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/zhongruiw/NAFNet/backend/cpu"
//	    "github.com/zhongruiw/NAFNet/nafnet"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    net, err := nafnet.New(nafnet.DefaultConfig(), backend)
//	    ...
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
