package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Every op allocates and returns a new RawTensor; inputs are never modified.
// Shape violations are programming errors and panic with an op-prefixed message.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by a scalar.
	MulScalar(x *RawTensor, scalar float32) *RawTensor

	// Conv2D performs a grouped, strided, unpadded 2D convolution.
	// input: [N, C_in, H, W], kernel: [C_out, C_in/groups, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride, groups int) *RawTensor

	// Spatial layout operations on NCHW tensors.
	PadCircular(x *RawTensor, top, bottom, left, right int) *RawTensor // wrap-around padding
	Crop(x *RawTensor, height, width int) *RawTensor                   // keep the top-left height×width window
	PixelShuffle(x *RawTensor, factor int) *RawTensor                  // [N, C*r*r, H, W] -> [N, C, H*r, W*r]

	// Pooling operations on NCHW tensors.
	AdaptiveAvgPool2D(x *RawTensor) *RawTensor                // global average to [N, C, 1, 1]
	BoxAvgPool2D(x *RawTensor, kernelH, kernelW int) *RawTensor // local average, replicate-padded back to [N, C, H, W]

	// LayerNorm2D normalizes over the channel axis at every spatial location,
	// then applies a per-channel affine transform (weight, bias: [C]).
	LayerNorm2D(x, weight, bias *RawTensor, epsilon float32) *RawTensor

	// Chunk splits x into n equal parts along dim.
	Chunk(x *RawTensor, n, dim int) []*RawTensor

	// Metadata
	Name() string
	Device() Device
}
