package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhongruiw/NAFNet/internal/config"
	"github.com/zhongruiw/NAFNet/internal/nafnet"
)

const demoYAML = `
name: NAFNet-width32
model_type: ImageRestorationModel
num_gpu: 1
manual_seed: 10

network_g:
  type: NAFNet_lr
  img_channel: 1
  width: 32
  middle_blk_num: 4
  enc_blk_nums: [1, 1, 2, 8]
  dec_blk_nums: [1, 1, 1, 1]

path:
  pretrain_network_g: experiments/pretrained/net_g.safetensors
  strict_load_g: true

train:
  total_iter: 200000
`

func TestParse(t *testing.T) {
	opts, err := config.Parse([]byte(demoYAML))
	require.NoError(t, err)

	assert.Equal(t, "NAFNet-width32", opts.Name)
	require.NotNil(t, opts.ManualSeed)
	assert.Equal(t, int64(10), *opts.ManualSeed)
	assert.Equal(t, "experiments/pretrained/net_g.safetensors", opts.Path.PretrainNetworkG)
	assert.False(t, opts.IsLocal())

	cfg := opts.NetworkConfig()
	assert.Equal(t, 1, cfg.ImgChannel)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 4, cfg.MiddleBlkNum)
	assert.Equal(t, []int{1, 1, 2, 8}, cfg.EncBlkNums)
	assert.Equal(t, []int{1, 1, 1, 1}, cfg.DecBlkNums)
	assert.Equal(t, int64(10), cfg.Seed)
	assert.Equal(t, nafnet.DefaultBlockConfig(), cfg.Block)
}

func TestParse_Defaults(t *testing.T) {
	opts, err := config.Parse([]byte("network_g:\n  type: NAFNet_lr\npath:\n  pretrain_network_g: ~\n"))
	require.NoError(t, err)

	cfg := opts.NetworkConfig()
	def := nafnet.DefaultConfig()
	assert.Equal(t, def.ImgChannel, cfg.ImgChannel)
	assert.Equal(t, def.Width, cfg.Width)
	assert.Equal(t, def.MiddleBlkNum, cfg.MiddleBlkNum)
	assert.Empty(t, cfg.EncBlkNums)
	assert.Equal(t, int64(-1), cfg.Seed)
	assert.Empty(t, opts.Path.PretrainNetworkG)
}

func TestParse_Local(t *testing.T) {
	opts, err := config.Parse([]byte(`
network_g:
  type: NAFNetLocal
  img_channel: 1
  width: 8
  enc_blk_nums: [1]
  dec_blk_nums: [1]
  train_size: [2, 1, 128, 96]
`))
	require.NoError(t, err)
	require.True(t, opts.IsLocal())
	assert.Equal(t, nafnet.LocalConfig{TrainSize: [4]int{2, 1, 128, 96}}, opts.LocalConfig())

	opts, err = config.Parse([]byte("network_g:\n  type: NAFNetLocal\n  img_channel: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 256, 256}, opts.LocalConfig().TrainSize)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty", "", config.ErrInvalidOptions},
		{"not yaml", "network_g: [", config.ErrInvalidOptions},
		{"no network", "name: x\n", config.ErrInvalidOptions},
		{"unknown type", "network_g:\n  type: UNet\n", config.ErrInvalidOptions},
		{"unknown key", "network_g:\n  type: NAFNet_lr\n  depth: 3\n", config.ErrInvalidOptions},
		{"local key on base", "network_g:\n  type: NAFNet_lr\n  train_size: [1, 3, 64, 64]\n", config.ErrInvalidOptions},
		{"short train_size", "network_g:\n  type: NAFNetLocal\n  train_size: [64, 64]\n", config.ErrInvalidOptions},
		{"unbalanced", "network_g:\n  type: NAFNet_lr\n  enc_blk_nums: [1, 1]\n  dec_blk_nums: [1]\n", nafnet.ErrConfig},
		{"zero width", "network_g:\n  type: NAFNet_lr\n  width: 0\n", nafnet.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yml")
	require.NoError(t, os.WriteFile(path, []byte(demoYAML), 0o600))

	opts, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "NAFNet-width32", opts.Name)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("network_g:\n  type: nope\n"), 0o600))
	_, err = config.Load(bad)
	require.ErrorIs(t, err, config.ErrInvalidOptions)
	assert.Contains(t, err.Error(), bad)
}

func TestDemo(t *testing.T) {
	opts := config.Demo()
	cfg := opts.NetworkConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16, cfg.PadderSize())
	assert.Equal(t, int64(-1), cfg.Seed)
}
