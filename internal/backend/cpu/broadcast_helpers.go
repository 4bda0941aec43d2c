package cpu

import (
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// computeBroadcastStridesForShape returns, for each axis of outShape, the stride
// to step through inShape. Axes that inShape lacks or holds at size 1 get stride 0,
// so the same element is reused along them.
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	own := inShape.ComputeStrides()
	lead := len(outShape) - len(inShape)

	for i := lead; i < len(outShape); i++ {
		if inShape[i-lead] != 1 {
			strides[i] = own[i-lead]
		}
	}
	return strides
}

// computeFlatIndex maps a flat output index to the flat source index given the
// output strides and the broadcast-adjusted source strides.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i, s := range outStrides {
		flatIdx += (outIdx / s) * inStrides[i]
		outIdx %= s
	}
	return flatIdx
}
