package nafnet_test

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhongruiw/NAFNet/internal/backend/cpu"
	"github.com/zhongruiw/NAFNet/internal/nafnet"
	"github.com/zhongruiw/NAFNet/internal/nn"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

type B = *cpu.CPUBackend

// smallConfig is a two-stage network that runs in milliseconds.
func smallConfig() nafnet.Config {
	cfg := nafnet.DefaultConfig()
	cfg.ImgChannel = 1
	cfg.Width = 4
	cfg.EncBlkNums = []int{1, 1}
	cfg.DecBlkNums = []int{1, 1}
	cfg.MiddleBlkNum = 1
	cfg.Seed = 42
	return cfg
}

func TestNAFBlock_IdentityAtInit(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := nafnet.NewNAFBlock(8, nafnet.DefaultBlockConfig(), rng, backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{2, 8, 7, 5}, rng, backend)
	y := block.Forward(x)

	assert.Equal(t, x.Shape(), y.Shape())
	assert.Equal(t, x.Data(), y.Data())

	block.Beta().Tensor().Data()[0] = 1
	y = block.Forward(x)
	assert.NotEqual(t, x.Data(), y.Data())
	assert.True(t, y.IsFinite())
}

func TestNAFBlock_Structure(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	cfg := nafnet.BlockConfig{DWExpand: 2, FFNExpand: 4}
	block, err := nafnet.NewNAFBlock(6, cfg, rng, backend)
	require.NoError(t, err)

	convs := block.Convs()
	require.Len(t, convs, 6)

	// conv1, conv2, conv3, sca, conv4, conv5
	want := []struct{ in, out, k, groups int }{
		{6, 12, 1, 1},
		{12, 12, 3, 12},
		{6, 6, 1, 1},
		{6, 6, 1, 1},
		{6, 24, 1, 1},
		{12, 6, 1, 1},
	}
	for i, w := range want {
		assert.Equal(t, w.in, convs[i].InChannels(), "conv %d", i)
		assert.Equal(t, w.out, convs[i].OutChannels(), "conv %d", i)
		assert.Equal(t, [2]int{w.k, w.k}, convs[i].KernelSize(), "conv %d", i)
		assert.Equal(t, w.groups, convs[i].Groups(), "conv %d", i)
	}

	assert.Equal(t, tensor.Shape{1, 6, 1, 1}, block.Beta().Tensor().Shape())
	assert.Equal(t, tensor.Shape{1, 6, 1, 1}, block.Gamma().Tensor().Shape())
	assert.IsType(t, &nn.GlobalAvgPool2D[B]{}, block.Pool())
	assert.Equal(t, "NAFBlock(c=6, dw=12, ffn=24)", block.String())

	_, err = nafnet.NewNAFBlock(3, nafnet.BlockConfig{DWExpand: 1, FFNExpand: 2}, rng, backend)
	require.ErrorIs(t, err, nafnet.ErrConfig)
	_, err = nafnet.NewNAFBlock(0, nafnet.DefaultBlockConfig(), rng, backend)
	require.ErrorIs(t, err, nafnet.ErrConfig)
}

func TestNAFBlock_StateDictKeys(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := nafnet.NewNAFBlock(4, nafnet.DefaultBlockConfig(), rng, backend)
	require.NoError(t, err)

	sd := block.StateDict()
	for _, key := range []string{
		"beta", "gamma",
		"norm1.weight", "norm1.bias", "norm2.weight", "norm2.bias",
		"conv1.parametrizations.weight.original",
		"conv1.parametrizations.weight.0.ci",
		"conv1.bias",
		"conv2.parametrizations.weight.original",
		"sca.1.parametrizations.weight.original",
		"sca.1.parametrizations.weight.0.ci",
		"sca.1.bias",
		"conv5.bias",
	} {
		assert.Contains(t, sd, key)
	}
	// beta, gamma, 4 norm tensors, 6 convs × (original, ci, bias)
	assert.Len(t, sd, 2+4+18)
	assert.Len(t, block.Parameters(), len(sd))
}

func TestNAFNet_ShapePreserved(t *testing.T) {
	backend := cpu.New()
	net, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)
	assert.Equal(t, 4, net.PadderSize())

	rng := rand.New(rand.NewSource(3))
	for _, shape := range []tensor.Shape{
		{1, 1, 16, 16},
		{2, 1, 8, 12},
		{1, 1, 13, 7},
		{1, 1, 1, 1},
		{3, 1, 5, 20},
	} {
		x := tensor.Randn(shape, rng, backend)
		y := net.Forward(x)
		assert.Equal(t, shape, y.Shape(), "input %v", shape)
		assert.True(t, y.IsFinite(), "input %v", shape)
	}

	assert.Panics(t, func() { net.Forward(tensor.Zeros(tensor.Shape{1, 3, 8, 8}, backend)) })
	assert.Panics(t, func() { net.Forward(tensor.Zeros(tensor.Shape{1, 8, 8}, backend)) })
}

func TestNAFNet_Divisibility(t *testing.T) {
	backend := cpu.New()

	cfg := nafnet.DefaultConfig()
	cfg.Width = 4
	cfg.EncBlkNums = []int{1, 1, 1, 1}
	cfg.DecBlkNums = []int{1, 1, 1, 1}
	cfg.Seed = 0
	net, err := nafnet.New(cfg, backend)
	require.NoError(t, err)
	assert.Equal(t, 16, net.PadderSize())

	var middle tensor.Shape
	net.Observe(func(name string, out *tensor.Tensor[B]) {
		if name == "middle_blks" {
			middle = out.Shape().Clone()
		}
	})

	x := tensor.Rand(tensor.Shape{1, 3, 100, 90}, rand.New(rand.NewSource(4)), backend)
	y := net.Forward(x)

	assert.Equal(t, tensor.Shape{1, 3, 100, 90}, y.Shape())
	// 100x90 is padded to 112x96, then halved four times.
	assert.Equal(t, tensor.Shape{1, 64, 7, 6}, middle)
}

func TestNAFNet_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full-resolution forward pass")
	}
	backend := cpu.New()

	cfg := nafnet.DefaultConfig()
	cfg.ImgChannel = 1
	cfg.Width = 32
	cfg.MiddleBlkNum = 4
	cfg.EncBlkNums = []int{1, 1, 2, 8}
	cfg.DecBlkNums = []int{1, 1, 1, 1}
	cfg.Seed = 0
	net, err := nafnet.New(cfg, backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{4, 1, 960, 240}, rand.New(rand.NewSource(5)), backend)
	y := net.Forward(x)

	assert.Equal(t, tensor.Shape{4, 1, 960, 240}, y.Shape())
	assert.True(t, y.IsFinite())
}

func TestNAFNet_LipschitzBound(t *testing.T) {
	net, err := nafnet.New(smallConfig(), cpu.New())
	require.NoError(t, err)

	convs := net.Convs()
	// intro, ending, 2 downs, 2 ups, 5 blocks × 6
	require.Len(t, convs, 2+2+2+5*6)

	for _, conv := range convs {
		var c float32
		found := false
		for _, p := range conv.Parameters() {
			if strings.HasSuffix(p.Name(), ".ci") {
				c, found = p.Tensor().Data()[0], true
			}
		}
		require.True(t, found, conv.String())

		bound := float64(nn.Softplus(c))
		w := conv.Weight()
		rows := w.Shape()[0]
		cols := w.NumElements() / rows
		for i := 0; i < rows; i++ {
			var sum float64
			for _, v := range w.Data()[i*cols : (i+1)*cols] {
				sum += math.Abs(float64(v))
			}
			require.LessOrEqual(t, sum, bound*(1+1e-5), "%s row %d", conv, i)
		}
	}
}

func TestNAFNet_Deterministic(t *testing.T) {
	backend := cpu.New()
	a, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)
	b, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 1, 9, 11}, rand.New(rand.NewSource(6)), backend)
	assert.Equal(t, a.Forward(x).Data(), b.Forward(x).Data())
}

func TestNAFNet_StateDict(t *testing.T) {
	backend := cpu.New()
	net, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)

	sd := net.StateDict()
	for _, key := range []string{
		"intro.parametrizations.weight.original",
		"intro.parametrizations.weight.0.ci",
		"intro.bias",
		"ending.bias",
		"encoders.0.0.beta",
		"encoders.1.0.conv2.parametrizations.weight.original",
		"downs.1.parametrizations.weight.original",
		"downs.1.bias",
		"middle_blks.0.sca.1.bias",
		"ups.0.0.parametrizations.weight.original",
		"ups.0.0.parametrizations.weight.0.ci",
		"decoders.1.0.norm2.weight",
	} {
		assert.Contains(t, sd, key)
	}
	assert.NotContains(t, sd, "ups.0.0.bias")
	assert.Len(t, sd, len(net.Parameters()))
	assert.Equal(t, tensor.Shape{32, 16, 1, 1}, sd["ups.0.0.parametrizations.weight.original"].Shape())
	assert.Equal(t, tensor.Shape{16, 8, 1, 1}, sd["ups.1.0.parametrizations.weight.original"].Shape())
	assert.Equal(t, tensor.Shape{8, 4, 2, 2}, sd["downs.0.parametrizations.weight.original"].Shape())

	total := 0
	for _, raw := range sd {
		total += raw.NumElements()
	}
	assert.Equal(t, total, net.NumParams())
}

func TestNAFNet_LoadStateDict(t *testing.T) {
	backend := cpu.New()
	src, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)

	// Non-zero residual scales so the blocks contribute.
	for _, block := range src.Blocks() {
		for i := range block.Beta().Tensor().Data() {
			block.Beta().Tensor().Data()[i] = 0.5
			block.Gamma().Tensor().Data()[i] = -0.25
		}
	}

	cfg := smallConfig()
	cfg.Seed = 7
	dst, err := nafnet.New(cfg, backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 1, 12, 12}, rand.New(rand.NewSource(8)), backend)
	require.NotEqual(t, src.Forward(x).Data(), dst.Forward(x).Data())

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
}

func TestNAFNet_LoadStateDict_Errors(t *testing.T) {
	backend := cpu.New()
	net, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)

	t.Run("unexpected", func(t *testing.T) {
		sd := net.StateDict()
		sd["encoders.0.0.conv9.bias"] = tensor.MustRaw(tensor.Shape{4}, tensor.CPU)
		sd["aaa"] = tensor.MustRaw(tensor.Shape{1}, tensor.CPU)
		err := net.LoadStateDict(sd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected keys in state dict: aaa, encoders.0.0.conv9.bias")
	})

	t.Run("missing", func(t *testing.T) {
		sd := net.StateDict()
		delete(sd, "middle_blks.0.gamma")
		err := net.LoadStateDict(sd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "middle_blks")
		assert.Contains(t, err.Error(), "gamma")
	})

	t.Run("shape", func(t *testing.T) {
		sd := net.StateDict()
		sd["intro.bias"] = tensor.MustRaw(tensor.Shape{5}, tensor.CPU)
		err := net.LoadStateDict(sd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "intro")
	})

	t.Run("late shape leaves weights untouched", func(t *testing.T) {
		before := append([]float32(nil), net.StateDict()["intro.bias"].Data()...)

		sd := make(map[string]*tensor.RawTensor)
		for k, raw := range net.StateDict() {
			filled := tensor.MustRaw(raw.Shape(), tensor.CPU)
			for i := range filled.Data() {
				filled.Data()[i] = 7
			}
			sd[k] = filled
		}
		sd["downs.1.bias"] = tensor.MustRaw(tensor.Shape{3}, tensor.CPU)

		err := net.LoadStateDict(sd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "downs.1.bias")
		assert.Equal(t, before, net.StateDict()["intro.bias"].Data())
	})
}

func TestNAFNet_Observe(t *testing.T) {
	backend := cpu.New()
	net, err := nafnet.New(smallConfig(), backend)
	require.NoError(t, err)

	var names []string
	shapes := make(map[string]tensor.Shape)
	net.Observe(func(name string, out *tensor.Tensor[B]) {
		names = append(names, name)
		shapes[name] = out.Shape().Clone()
	})
	net.Forward(tensor.Zeros(tensor.Shape{1, 1, 16, 16}, backend))

	assert.Equal(t, []string{
		"intro",
		"encoders.0", "downs.0",
		"encoders.1", "downs.1",
		"middle_blks",
		"ups.0", "decoders.0",
		"ups.1", "decoders.1",
		"ending", "output",
	}, names)
	assert.Equal(t, tensor.Shape{1, 4, 16, 16}, shapes["intro"])
	assert.Equal(t, tensor.Shape{1, 16, 4, 4}, shapes["middle_blks"])
	assert.Equal(t, tensor.Shape{1, 8, 8, 8}, shapes["ups.0"])
	assert.Equal(t, tensor.Shape{1, 1, 16, 16}, shapes["output"])

	net.Observe(nil)
	names = nil
	net.Forward(tensor.Zeros(tensor.Shape{1, 1, 4, 4}, backend))
	assert.Empty(t, names)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*nafnet.Config)
	}{
		{"zero img_channel", func(c *nafnet.Config) { c.ImgChannel = 0 }},
		{"negative width", func(c *nafnet.Config) { c.Width = -4 }},
		{"negative middle", func(c *nafnet.Config) { c.MiddleBlkNum = -1 }},
		{"unbalanced stages", func(c *nafnet.Config) { c.DecBlkNums = []int{1} }},
		{"negative encoder count", func(c *nafnet.Config) { c.EncBlkNums = []int{-1, 1} }},
		{"negative decoder count", func(c *nafnet.Config) { c.DecBlkNums = []int{1, -2} }},
		{"odd expanded width", func(c *nafnet.Config) { c.Width, c.Block.DWExpand = 3, 1 }},
		{"zero expansion", func(c *nafnet.Config) { c.Block.FFNExpand = 0 }},
		{"dropout of one", func(c *nafnet.Config) { c.Block.DropOutRate = 1 }},
	}

	require.NoError(t, smallConfig().Validate())
	require.NoError(t, nafnet.DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), nafnet.ErrConfig)

			_, err := nafnet.New(cfg, cpu.New())
			require.ErrorIs(t, err, nafnet.ErrConfig)
		})
	}
}

func TestNAFNet_ZeroStages(t *testing.T) {
	backend := cpu.New()
	cfg := nafnet.DefaultConfig()
	cfg.Width = 2
	cfg.MiddleBlkNum = 0
	cfg.Seed = 1
	net, err := nafnet.New(cfg, backend)
	require.NoError(t, err)
	assert.Equal(t, 1, net.PadderSize())
	assert.Empty(t, net.Blocks())

	x := tensor.Randn(tensor.Shape{1, 3, 5, 3}, rand.New(rand.NewSource(1)), backend)
	assert.Equal(t, x.Shape(), net.Forward(x).Shape())
}

func TestNAFNet_Dropout(t *testing.T) {
	backend := cpu.New()
	cfg := smallConfig()
	cfg.Block.DropOutRate = 0.5
	net, err := nafnet.New(cfg, backend)
	require.NoError(t, err)

	for _, block := range net.Blocks() {
		block.Beta().Tensor().Data()[0] = 1
		block.Gamma().Tensor().Data()[0] = 1
	}

	x := tensor.Randn(tensor.Shape{1, 1, 8, 8}, rand.New(rand.NewSource(2)), backend)
	eval1 := net.Forward(x).Data()
	eval2 := net.Forward(x).Data()
	assert.Equal(t, eval1, eval2)

	net.SetTraining(true)
	train := net.Forward(x).Data()
	assert.NotEqual(t, eval1, train)

	net.SetTraining(false)
	assert.Equal(t, eval1, net.Forward(x).Data())
}
