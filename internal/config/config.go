// Package config loads network option files in the YAML layout of basicsr
// training configs. Only the keys that describe the generator network and
// its pretrained weights are read; other sections are ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/zhongruiw/NAFNet/internal/nafnet"
)

// Network types.
const (
	TypeNAFNet      = "NAFNet_lr"
	TypeNAFNetLocal = "NAFNetLocal"
)

// ErrInvalidOptions is returned for option files that cannot describe a network.
var ErrInvalidOptions = errors.New("invalid options")

// Options is the parsed option file.
type Options struct {
	Name       string         `yaml:"name"`
	ManualSeed *int64         `yaml:"manual_seed"`
	NetworkG   NetworkOptions `yaml:"network_g"`
	Path       PathOptions    `yaml:"path"`
}

// NetworkOptions mirrors the constructor arguments of the network.
type NetworkOptions struct {
	Type         string `yaml:"type"`
	ImgChannel   int    `yaml:"img_channel"`
	Width        int    `yaml:"width"`
	MiddleBlkNum int    `yaml:"middle_blk_num"`
	EncBlkNums   []int  `yaml:"enc_blk_nums"`
	DecBlkNums   []int  `yaml:"dec_blk_nums"`

	// NAFNetLocal only.
	TrainSize []int `yaml:"train_size"`
	FastImp   bool  `yaml:"fast_imp"`
}

// PathOptions holds file locations.
type PathOptions struct {
	PretrainNetworkG string `yaml:"pretrain_network_g"`
}

// networkKeys lists the accepted network_g keys per type.
var networkKeys = map[string][]string{
	TypeNAFNet:      {"type", "img_channel", "width", "middle_blk_num", "enc_blk_nums", "dec_blk_nums"},
	TypeNAFNetLocal: {"type", "img_channel", "width", "middle_blk_num", "enc_blk_nums", "dec_blk_nums", "train_size", "fast_imp"},
}

// Demo returns the options of the reference memory-profiling run:
// a single-channel network of width 32 with [1, 1, 2, 8] encoder blocks.
func Demo() *Options {
	return &Options{
		Name: "demo",
		NetworkG: NetworkOptions{
			Type:         TypeNAFNet,
			ImgChannel:   1,
			Width:        32,
			MiddleBlkNum: 4,
			EncBlkNums:   []int{1, 1, 2, 8},
			DecBlkNums:   []int{1, 1, 1, 1},
		},
	}
}

// Load reads and parses the option file at path.
func Load(path string) (*Options, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for option files
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	opts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Parse parses and validates an option file.
//
// Omitted network keys take the network's constructor defaults. A missing
// train_size for NAFNetLocal defaults to [1, img_channel, 256, 256].
func Parse(data []byte) (*Options, error) {
	def := nafnet.DefaultConfig()
	opts := &Options{
		NetworkG: NetworkOptions{
			ImgChannel:   def.ImgChannel,
			Width:        def.Width,
			MiddleBlkNum: def.MiddleBlkNum,
		},
	}

	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	var raw struct {
		NetworkG map[string]yaml.Node `yaml:"network_g"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if raw.NetworkG == nil {
		return nil, fmt.Errorf("%w: missing network_g section", ErrInvalidOptions)
	}

	allowed, ok := networkKeys[opts.NetworkG.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown network type %q", ErrInvalidOptions, opts.NetworkG.Type)
	}
	var unknown []string
	for key := range raw.NetworkG {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: network_g: unexpected keys for %s: %v", ErrInvalidOptions, opts.NetworkG.Type, unknown)
	}

	if opts.NetworkG.Type == TypeNAFNetLocal && opts.NetworkG.TrainSize == nil {
		opts.NetworkG.TrainSize = []int{1, opts.NetworkG.ImgChannel, 256, 256}
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) validate() error {
	if err := o.NetworkConfig().Validate(); err != nil {
		return fmt.Errorf("network_g: %w", err)
	}
	if o.IsLocal() && len(o.NetworkG.TrainSize) != 4 {
		return fmt.Errorf("%w: network_g: train_size must have 4 entries, got %v", ErrInvalidOptions, o.NetworkG.TrainSize)
	}
	return nil
}

// IsLocal reports whether the options describe a NAFNetLocal.
func (o *Options) IsLocal() bool {
	return o.NetworkG.Type == TypeNAFNetLocal
}

// NetworkConfig maps the options onto a network configuration.
// manual_seed becomes the initialization seed; without it the seed is random.
func (o *Options) NetworkConfig() nafnet.Config {
	cfg := nafnet.DefaultConfig()
	cfg.ImgChannel = o.NetworkG.ImgChannel
	cfg.Width = o.NetworkG.Width
	cfg.MiddleBlkNum = o.NetworkG.MiddleBlkNum
	cfg.EncBlkNums = append([]int(nil), o.NetworkG.EncBlkNums...)
	cfg.DecBlkNums = append([]int(nil), o.NetworkG.DecBlkNums...)
	if o.ManualSeed != nil {
		cfg.Seed = *o.ManualSeed
	}
	return cfg
}

// LocalConfig returns the local-pooling settings. Only meaningful when IsLocal.
func (o *Options) LocalConfig() nafnet.LocalConfig {
	var local nafnet.LocalConfig
	copy(local.TrainSize[:], o.NetworkG.TrainSize)
	local.FastImp = o.NetworkG.FastImp
	return local
}
