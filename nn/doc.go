// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the building blocks of NAFNet as reusable modules.
//
// # Layers
//
//   - Conv2D: grouped, strided, unpadded convolution with PyTorch initialization
//   - LayerNorm2D: per-pixel normalization across channels
//   - SimpleGate: split channels in half and multiply the halves
//   - CircularPad: wrap-around padding sized for a "same" convolution
//   - PixelShuffle: depth-to-space upsampling
//   - GlobalAvgPool2D, LocalAvgPool2D: channel-attention pooling
//   - Dropout, Sequential
//
// # Lipschitz Normalization
//
// WrapLipNorm attaches a learnable per-layer bound to a convolution weight:
// every output row of the effective weight has an absolute sum of at most
// softplus(c). State-dict keys follow PyTorch's parametrize module.
//
//	conv := nn.NewConv2D(16, 32, 3, 3, 1, 1, true, rng, backend)
//	if _, err := nn.WrapLipNorm[B](conv, "weight", rng); err != nil {
//	    return err
//	}
package nn
