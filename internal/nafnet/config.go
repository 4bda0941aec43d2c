package nafnet

import (
	"fmt"
	"math/rand"
)

// BlockConfig configures a NAFBlock.
type BlockConfig struct {
	DWExpand    int     // Channel multiplier of the depthwise branch.
	FFNExpand   int     // Channel multiplier of the feed-forward branch.
	DropOutRate float64 // Dropout after each branch. 0 = disabled.
}

// DefaultBlockConfig returns the standard NAFBlock configuration.
func DefaultBlockConfig() BlockConfig {
	return BlockConfig{
		DWExpand:    2,
		FFNExpand:   2,
		DropOutRate: 0,
	}
}

// Validate checks the configuration for a block with c channels.
func (b BlockConfig) Validate(c int) error {
	if b.DWExpand <= 0 || b.FFNExpand <= 0 {
		return fmt.Errorf("expansion factors must be positive (dw=%d, ffn=%d): %w", b.DWExpand, b.FFNExpand, ErrConfig)
	}
	if (c*b.DWExpand)%2 != 0 || (c*b.FFNExpand)%2 != 0 {
		return fmt.Errorf("block with %d channels: expanded widths %d and %d must be even: %w",
			c, c*b.DWExpand, c*b.FFNExpand, ErrConfig)
	}
	if b.DropOutRate < 0 || b.DropOutRate >= 1 {
		return fmt.Errorf("dropout rate %v outside [0, 1): %w", b.DropOutRate, ErrConfig)
	}
	return nil
}

// Config configures a NAFNet.
type Config struct {
	// ImgChannel is the number of image channels (input and output).
	ImgChannel int

	// Width is the channel count after the intro convolution.
	// It doubles at every encoder stage.
	Width int

	// Block counts.
	MiddleBlkNum int   // NAFBlocks between encoder and decoder.
	EncBlkNums   []int // NAFBlocks per encoder stage.
	DecBlkNums   []int // NAFBlocks per decoder stage; same length as EncBlkNums.

	Block BlockConfig

	// Seed for parameter initialization. -1 = random.
	Seed int64
}

// DefaultConfig returns the default network configuration: 3 image channels,
// width 16, one middle block and no encoder/decoder stages.
func DefaultConfig() Config {
	return Config{
		ImgChannel:   3,
		Width:        16,
		MiddleBlkNum: 1,
		Block:        DefaultBlockConfig(),
		Seed:         -1,
	}
}

// Validate checks the structural invariants of the configuration.
func (c Config) Validate() error {
	if c.ImgChannel <= 0 {
		return fmt.Errorf("img_channel must be positive, got %d: %w", c.ImgChannel, ErrConfig)
	}
	if c.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d: %w", c.Width, ErrConfig)
	}
	if c.MiddleBlkNum < 0 {
		return fmt.Errorf("middle_blk_num must be non-negative, got %d: %w", c.MiddleBlkNum, ErrConfig)
	}
	// Every decoder consumes the skip of its mirrored encoder.
	if len(c.EncBlkNums) != len(c.DecBlkNums) {
		return fmt.Errorf("%d encoder stages but %d decoder stages: %w", len(c.EncBlkNums), len(c.DecBlkNums), ErrConfig)
	}
	for i, n := range c.EncBlkNums {
		if n < 0 {
			return fmt.Errorf("enc_blk_nums[%d] = %d is negative: %w", i, n, ErrConfig)
		}
	}
	for i, n := range c.DecBlkNums {
		if n < 0 {
			return fmt.Errorf("dec_blk_nums[%d] = %d is negative: %w", i, n, ErrConfig)
		}
	}

	channels := c.Width
	for range c.EncBlkNums {
		if err := c.Block.Validate(channels); err != nil {
			return err
		}
		channels *= 2
	}
	return c.Block.Validate(channels)
}

// PadderSize returns the factor both spatial dimensions are padded to a multiple of.
func (c Config) PadderSize() int {
	return 1 << len(c.EncBlkNums)
}

func (c Config) rng() *rand.Rand {
	seed := c.Seed
	if seed < 0 {
		seed = rand.Int63() //nolint:gosec // User requested random seed
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // Intentional deterministic seed for reproducibility
}
