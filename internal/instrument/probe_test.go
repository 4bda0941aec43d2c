package instrument

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_Sample(t *testing.T) {
	var buf bytes.Buffer
	probe := NewProbe(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NotEqual(t, uuid.Nil, probe.RunID())

	first := probe.Sample("start")
	assert.Greater(t, first, 0.0)

	// Peak RSS never decreases.
	ballast := make([]byte, 16<<20)
	for i := range ballast {
		ballast[i] = byte(i)
	}
	second := probe.Sample("after alloc")
	assert.GreaterOrEqual(t, second, first)
	_ = ballast[len(ballast)-1]

	samples := probe.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, "start", samples[0].Point)
	assert.Equal(t, "after alloc", samples[1].Point)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "msg=\"memory sample\"")
		assert.Contains(t, line, "run_id="+probe.RunID().String())
		assert.Contains(t, line, "peak_mib=")
	}
	assert.Contains(t, lines[0], "point=start")
	assert.Contains(t, lines[0], "delta_mib=0")
	assert.Contains(t, lines[1], "point=\"after alloc\"")
}

func TestProbe_DistinctRuns(t *testing.T) {
	a := NewProbe(nil)
	b := NewProbe(nil)
	assert.NotEqual(t, a.RunID(), b.RunID())

	// A nil logger discards output.
	assert.Greater(t, a.Sample("x"), 0.0)
	assert.NotNil(t, a.Logger())
}

func TestProbe_Concurrent(t *testing.T) {
	probe := NewProbe(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probe.Sample("worker")
		}()
	}
	wg.Wait()

	assert.Len(t, probe.Samples(), 8)
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 1.23, round2(1.234), 1e-12)
	assert.InDelta(t, 1.24, round2(1.235001), 1e-12)
	assert.InDelta(t, 0.0, round2(0.001), 1e-12)
}
