package nn

import (
	"fmt"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// PixelShuffle rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r].
type PixelShuffle[B tensor.Backend] struct {
	stateless[B]

	factor int
}

// NewPixelShuffle creates a PixelShuffle with upscale factor r.
func NewPixelShuffle[B tensor.Backend](factor int) *PixelShuffle[B] {
	if factor <= 0 {
		panic(fmt.Sprintf("pixel_shuffle: invalid upscale factor %d", factor))
	}
	return &PixelShuffle[B]{factor: factor}
}

// Forward performs the rearrangement.
func (p *PixelShuffle[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	return x.PixelShuffle(p.factor)
}

func (p *PixelShuffle[B]) String() string {
	return fmt.Sprintf("PixelShuffle(upscale_factor=%d)", p.factor)
}
