// Package parallel splits batch and channel loops of the CPU backend across goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig sizes the worker pool from the detected CPU topology.
//
// Feature maps in the network are large (hundreds of thousands of pixels per
// channel), so a single (batch, channel) item is already worth a goroutine.
func DefaultConfig() Config {
	n := Workers()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// Workers returns the number of hardware threads available to this process.
//
// cpuid reports the physical topology; GOMAXPROCS may restrict it further.
func Workers() int {
	n := cpuid.CPU.LogicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return min(n, runtime.GOMAXPROCS(0))
}

// For calls f(i) for every i in [0, n), in contiguous chunks of at least
// MinChunkSize per goroutine. Small n or a disabled config runs inline.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Go(func() {
			for i := start; i < end; i++ {
				f(i)
			}
		})
	}
	wg.Wait()
}

// ForBatch iterates the batch*channels grid common in NCHW kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
