package nn

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// SimpleGate splits its input in two along the channel axis and multiplies
// the halves element-wise.
//
//	[N, 2C, H, W] -> [N, C, H, W]
//
// It has no parameters.
type SimpleGate[B tensor.Backend] struct {
	stateless[B]
}

// NewSimpleGate creates a SimpleGate.
func NewSimpleGate[B tensor.Backend]() *SimpleGate[B] {
	return &SimpleGate[B]{}
}

// SimpleGateOutput returns the channel count a SimpleGate produces from
// channels inputs, or an error when channels is not even.
func SimpleGateOutput(channels int) (int, error) {
	if channels <= 0 || channels%2 != 0 {
		return 0, fmt.Errorf("simplegate: channel count %d is not a positive even number", channels)
	}
	return channels / 2, nil
}

// Forward returns x1 * x2 where x1, x2 are the two channel halves of x.
// Panics when the channel count is odd.
func (g *SimpleGate[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	x.MustBe4D("simplegate", -1)
	if _, err := SimpleGateOutput(x.Shape()[1]); err != nil {
		panic(err.Error())
	}
	halves := x.Chunk(2, 1)
	return halves[0].Mul(halves[1])
}
