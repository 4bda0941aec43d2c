// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict: Export parameters for serialization
//   - LoadStateDict: Import parameters from serialization
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Parametrization transforms a stored tensor into the tensor a layer uses.
type Parametrization[B tensor.Backend] = nn.Parametrization[B]

// NumParams returns the total number of scalar parameters of m.
func NumParams[B tensor.Backend](m Module[B]) int {
	return nn.NumParams(m)
}
