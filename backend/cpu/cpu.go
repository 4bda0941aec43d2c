// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/zhongruiw/NAFNet/internal/backend/cpu"
	"github.com/zhongruiw/NAFNet/internal/parallel"
	"github.com/zhongruiw/NAFNet/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Config controls how ops split work across goroutines.
type Config = parallel.Config

// DefaultConfig returns a parallel configuration with one worker per logical core.
func DefaultConfig() Config {
	return parallel.DefaultConfig()
}

// New creates a new CPU backend with the default parallel configuration.
//
// Example:
//
//	import (
//	    "github.com/zhongruiw/NAFNet/backend/cpu"
//	    "github.com/zhongruiw/NAFNet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros(tensor.Shape{1, 3, 32, 32}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with a custom parallel configuration.
//
// Example:
//
//	cfg := cpu.DefaultConfig()
//	cfg.NumWorkers = 2
//	backend := cpu.NewWithConfig(cfg)
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
