// Package instrument samples process memory at named points of a run and
// logs each sample with a per-run identifier.
package instrument

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
)

// Sample is one memory reading.
type Sample struct {
	Point   string
	PeakMiB float64
}

// Probe records memory samples for one run.
//
// A Probe is safe for concurrent use. Every log line carries the run ID so
// that samples from concurrent runs can be told apart.
type Probe struct {
	runID  uuid.UUID
	logger *slog.Logger

	mu      sync.Mutex
	samples []Sample
}

// NewProbe creates a probe with a fresh run ID. A nil logger discards output.
func NewProbe(logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.New()
	return &Probe{
		runID:  id,
		logger: logger.With("run_id", id.String()),
	}
}

// RunID returns the identifier attached to every log line.
func (p *Probe) RunID() uuid.UUID {
	return p.runID
}

// Logger returns the probe's logger, already tagged with the run ID.
func (p *Probe) Logger() *slog.Logger {
	return p.logger
}

// Sample reads the peak resident set size of the process in MiB, records it
// under point and logs it together with the change since the previous sample.
func (p *Probe) Sample(point string) float64 {
	peak := peakRSSMiB()

	p.mu.Lock()
	delta := 0.0
	if n := len(p.samples); n > 0 {
		delta = peak - p.samples[n-1].PeakMiB
	}
	p.samples = append(p.samples, Sample{Point: point, PeakMiB: peak})
	p.mu.Unlock()

	p.logger.Info("memory sample",
		"point", point,
		"peak_mib", round2(peak),
		"delta_mib", round2(delta),
	)
	return peak
}

// Samples returns a copy of every sample taken so far, in order.
func (p *Probe) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
