// Package serialization reads and writes state dictionaries in the
// SafeTensors format used by HuggingFace and PyTorch checkpoints:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The header maps every tensor name to its dtype, shape and byte range in the
// data section, plus an optional "__metadata__" string map.
//
// Tensors are always written as F32. F32, F64, F16 and BF16 are read and
// converted to float32.
//
// Example usage:
//
//	// Save a network
//	if err := serialization.WriteSafeTensors("net.safetensors", net.StateDict(), nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load it back
//	stateDict, _, err := serialization.ReadSafeTensors("net.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := net.LoadStateDict(stateDict); err != nil {
//	    log.Fatal(err)
//	}
package serialization
