package serialization

import (
	"encoding/json"
	"fmt"
)

// metadataKey is the reserved header entry for free-form string metadata.
const metadataKey = "__metadata__"

// TensorInfo describes a tensor in the SafeTensors header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to the data section
}

// NumElements returns the element count of the tensor. ok is false when a
// dimension is negative or the count exceeds limit; the product never overflows.
func (t TensorInfo) NumElements(limit int64) (n int64, ok bool) {
	n = 1
	for _, d := range t.Shape {
		if d < 0 {
			return 0, false
		}
		if d == 0 {
			return 0, true
		}
		if n > limit/int64(d) {
			return 0, false
		}
		n *= int64(d)
	}
	return n, n <= limit
}

// Header is the parsed JSON header of a SafeTensors file.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the flat header object into metadata and tensors.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// MarshalJSON writes the flat header object.
func (h Header) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Tensors)+1)
	if len(h.Metadata) > 0 {
		out[metadataKey] = h.Metadata
	}
	for name, info := range h.Tensors {
		out[name] = info
	}
	return json.Marshal(out)
}
