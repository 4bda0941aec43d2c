package nafnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhongruiw/NAFNet/internal/backend/cpu"
	"github.com/zhongruiw/NAFNet/internal/tensor"
)

func TestGroupDigits(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{29158209, "29,158,209"},
		{-12345, "-12,345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, groupDigits(tt.in))
	}
}

func TestSummarize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImgChannel = 1
	cfg.Width = 4
	cfg.EncBlkNums = []int{1}
	cfg.DecBlkNums = []int{1}
	cfg.Seed = 3

	net, err := New(cfg, cpu.New())
	require.NoError(t, err)

	calls := 0
	net.Observe(func(string, *tensor.Tensor[*cpu.CPUBackend]) { calls++ })

	s := net.Summarize(8, 6)
	require.Len(t, s.Layers, 8)
	assert.Equal(t, 8, calls, "installed observer still sees the pass")
	require.NotNil(t, net.observer)

	intro := s.Layers[0]
	assert.Equal(t, "intro", intro.Name)
	assert.Equal(t, "Conv2D", intro.Type)
	assert.Equal(t, tensor.Shape{1, 4, 8, 6}, intro.OutputShape)
	// weight 4x1x3x3, bias 4, LipNorm c
	assert.Equal(t, 36+4+1, intro.Params)

	assert.Equal(t, "Sequential", s.Layers[1].Type)
	last := s.Layers[len(s.Layers)-1]
	assert.Equal(t, "output", last.Name)
	assert.Equal(t, "NAFNet", last.Type)
	assert.Zero(t, last.Params)

	assert.Equal(t, net.NumParams(), s.TotalParams)
	assert.InDelta(t, float64(8*6*4)/(1024*1024), s.InputSizeMB(), 1e-12)

	text := s.String()
	assert.Contains(t, text, "intro (Conv2D)")
	assert.Contains(t, text, "[-1, 4, 8, 6]")
	assert.Contains(t, text, "Total params: "+groupDigits(s.TotalParams))
	assert.Contains(t, text, "Estimated Total Size (MB):")
	assert.Equal(t, 1, strings.Count(text, "middle_blks"))
}
