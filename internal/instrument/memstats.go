package instrument

import "runtime"

// heapSysMiB returns the memory obtained from the OS by the Go runtime.
func heapSysMiB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys) / (1024 * 1024)
}
