//go:build !unix

package instrument

func peakRSSMiB() float64 {
	return heapSysMiB()
}
