// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/tensor"
)

// Layer types.
type (
	Conv2D[B tensor.Backend]          = nn.Conv2D[B]
	LayerNorm2D[B tensor.Backend]     = nn.LayerNorm2D[B]
	SimpleGate[B tensor.Backend]      = nn.SimpleGate[B]
	CircularPad[B tensor.Backend]     = nn.CircularPad[B]
	PixelShuffle[B tensor.Backend]    = nn.PixelShuffle[B]
	GlobalAvgPool2D[B tensor.Backend] = nn.GlobalAvgPool2D[B]
	LocalAvgPool2D[B tensor.Backend]  = nn.LocalAvgPool2D[B]
	Dropout[B tensor.Backend]         = nn.Dropout[B]
	Sequential[B tensor.Backend]      = nn.Sequential[B]
	LipNorm[B tensor.Backend]         = nn.LipNorm[B]
)

// Errors.
var (
	ErrNoSuchParameter = nn.ErrNoSuchParameter
	ErrPadding         = nn.ErrPadding
)

// NewConv2D creates a convolution layer.
//
// Parameters:
//   - in, out: Input and output channels (both divisible by groups)
//   - kh, kw: Kernel size
//   - stride: Stride in both dimensions
//   - groups: Channel groups (in for a depthwise convolution)
//   - useBias: Whether to add a learnable per-channel bias
//   - rng: Random source for Kaiming-uniform initialization
//   - backend: Backend for computation
func NewConv2D[B tensor.Backend](in, out, kh, kw, stride, groups int, useBias bool, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(in, out, kh, kw, stride, groups, useBias, rng, backend)
}

// NewLayerNorm2D creates a channel layer-norm with unit weight and zero bias.
func NewLayerNorm2D[B tensor.Backend](channels int, epsilon float32, backend B) *LayerNorm2D[B] {
	return nn.NewLayerNorm2D(channels, epsilon, backend)
}

// NewSimpleGate creates a SimpleGate.
func NewSimpleGate[B tensor.Backend]() *SimpleGate[B] {
	return nn.NewSimpleGate[B]()
}

// NewCircularPad creates circular padding for a kernel and stride.
func NewCircularPad[B tensor.Backend](kernelH, kernelW, strideH, strideW int) (*CircularPad[B], error) {
	return nn.NewCircularPad[B](kernelH, kernelW, strideH, strideW)
}

// NewPixelShuffle creates a depth-to-space layer with the given factor.
func NewPixelShuffle[B tensor.Backend](factor int) *PixelShuffle[B] {
	return nn.NewPixelShuffle[B](factor)
}

// NewGlobalAvgPool2D creates a global average pool.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return nn.NewGlobalAvgPool2D[B]()
}

// NewLocalAvgPool2D creates a lazily calibrated local average pool.
func NewLocalAvgPool2D[B tensor.Backend](baseH, baseW, trainH, trainW int) *LocalAvgPool2D[B] {
	return nn.NewLocalAvgPool2D[B](baseH, baseW, trainH, trainW)
}

// NewDropout creates a Dropout layer with rate in [0, 1).
func NewDropout[B tensor.Backend](rate float64, rng *rand.Rand) (*Dropout[B], error) {
	return nn.NewDropout[B](rate, rng)
}

// NewSequential chains modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// WrapLipNorm attaches a fresh LipNorm to the tensor called name of module.
func WrapLipNorm[B tensor.Backend](module Module[B], name string, rng *rand.Rand) (*LipNorm[B], error) {
	return nn.WrapLipNorm(module, name, rng)
}

// LipschitzNorm rescales each of outChannels rows of weight so that its
// absolute sum is at most softplus(c).
func LipschitzNorm(weight []float32, outChannels int, c float32) []float32 {
	return nn.LipschitzNorm(weight, outChannels, c)
}

// Softplus returns log(1 + exp(x)).
func Softplus(x float32) float32 {
	return nn.Softplus(x)
}
