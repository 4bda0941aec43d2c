//go:build unix

package instrument

import (
	"runtime"
	"syscall"
)

// peakRSSMiB returns ru_maxrss of the current process.
func peakRSSMiB() float64 {
	var usage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &usage); err != nil {
		return heapSysMiB()
	}
	maxrss := float64(usage.Maxrss)
	// Darwin reports bytes, everything else kilobytes.
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		return maxrss / (1024 * 1024)
	}
	return maxrss / 1024
}
