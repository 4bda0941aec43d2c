// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nafnet provides NAFNet_lr, a Lipschitz-constrained U-shaped image
// restoration network built from nonlinear-activation-free blocks.
//
// # Overview
//
// The network maps an image batch [N, C, H, W] to a restored batch of the
// same shape. Every convolution carries a learnable Lipschitz bound, all
// spatial padding is circular, and inputs of any size are padded to a multiple
// of 2^stages internally and cropped back.
//
// NAFNetLocal is the same network with the global pooling of each block's
// channel attention replaced by a local window calibrated to the training
// crop size, for full-resolution inference.
//
// # Basic Usage
//
//	backend := cpu.New()
//
//	cfg := nafnet.DefaultConfig()
//	cfg.ImgChannel = 1
//	cfg.Width = 32
//	cfg.MiddleBlkNum = 4
//	cfg.EncBlkNums = []int{1, 1, 2, 8}
//	cfg.DecBlkNums = []int{1, 1, 1, 1}
//
//	net, err := nafnet.New(cfg, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out := net.Forward(x) // same shape as x
//
// # Option Files
//
// Networks can also be described by basicsr-style YAML option files:
//
//	opts, err := nafnet.LoadOptions("options/train.yml")
//	net, err := nafnet.Build(opts, backend) // loads path.pretrain_network_g if set
//
// # Weights
//
// Weights are exchanged as SafeTensors files whose keys match the PyTorch
// state dict of the reference implementation ("intro.parametrizations.weight.original", ...).
package nafnet
