// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nafnet

import (
	"github.com/zhongruiw/NAFNet/internal/config"
	"github.com/zhongruiw/NAFNet/internal/nafnet"
	"github.com/zhongruiw/NAFNet/tensor"
)

// Config configures a NAFNet.
type Config = nafnet.Config

// BlockConfig configures a NAFBlock.
type BlockConfig = nafnet.BlockConfig

// LocalConfig configures the local-pooling conversion.
type LocalConfig = nafnet.LocalConfig

// NAFNet is the restoration network.
type NAFNet[B tensor.Backend] = nafnet.NAFNet[B]

// Local is a NAFNet with locally calibrated channel-attention pooling.
type Local[B tensor.Backend] = nafnet.Local[B]

// NAFBlock is the nonlinear-activation-free residual block.
type NAFBlock[B tensor.Backend] = nafnet.NAFBlock[B]

// Observer receives every top-level stage output of a forward pass.
type Observer[B tensor.Backend] = nafnet.Observer[B]

// Summary is a per-stage report of one forward pass.
type Summary = nafnet.Summary

// Options is a parsed YAML option file.
type Options = config.Options

// ErrConfig is returned (wrapped) for invalid network configurations.
var ErrConfig = nafnet.ErrConfig

// DefaultConfig returns 3 image channels, width 16, one middle block and no stages.
func DefaultConfig() Config {
	return nafnet.DefaultConfig()
}

// DefaultBlockConfig returns expansion factors 2 and no dropout.
func DefaultBlockConfig() BlockConfig {
	return nafnet.DefaultBlockConfig()
}

// DefaultLocalConfig returns a 1×3×256×256 training size.
func DefaultLocalConfig() LocalConfig {
	return nafnet.DefaultLocalConfig()
}

// New builds a NAFNet from cfg.
func New[B tensor.Backend](cfg Config, backend B) (*NAFNet[B], error) {
	return nafnet.New(cfg, backend)
}

// NewLocal builds a NAFNet from cfg and converts it for local pooling.
func NewLocal[B tensor.Backend](cfg Config, local LocalConfig, backend B) (*Local[B], error) {
	return nafnet.NewLocal(cfg, local, backend)
}

// LoadOptions reads a YAML option file.
func LoadOptions(path string) (*Options, error) {
	return config.Load(path)
}

// DemoOptions returns the options of the reference memory-profiling network.
func DemoOptions() *Options {
	return config.Demo()
}

// Build creates the network an option file describes and loads
// path.pretrain_network_g into it when set.
func Build[B tensor.Backend](opts *Options, backend B) (*NAFNet[B], error) {
	var (
		net *NAFNet[B]
		err error
	)
	if opts.IsLocal() {
		var local *Local[B]
		local, err = nafnet.NewLocal(opts.NetworkConfig(), opts.LocalConfig(), backend)
		if local != nil {
			net = local.NAFNet
		}
	} else {
		net, err = nafnet.New(opts.NetworkConfig(), backend)
	}
	if err != nil {
		return nil, err
	}

	if path := opts.Path.PretrainNetworkG; path != "" {
		if err := LoadWeights(path, net); err != nil {
			return nil, err
		}
	}
	return net, nil
}
