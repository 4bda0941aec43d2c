package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorName rejects empty, oversized and path-like tensor names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name,
			Details: "contains '..', a path separator or a null byte",
		}
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor's byte range matches its
// shape, lies inside the data section and does not overlap another tensor.
func ValidateTensorOffsets(tensors map[string]TensorInfo, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	// Sort by start offset, then name, so overlap checks only compare neighbours.
	sort.Slice(names, func(i, j int) bool {
		a, b := tensors[names[i]].DataOffsets[0], tensors[names[j]].DataOffsets[0]
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})

	for i, name := range names {
		info := tensors[name]
		start, end := info.DataOffsets[0], info.DataOffsets[1]

		if start < 0 || end < start {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  name,
				Details: fmt.Sprintf("end %d > data size %d", end, dataSize),
			}
		}
		size := int64(info.DType.Size())
		if size == 0 {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: string(info.DType)}
		}
		n, ok := info.NumElements(dataSize / size)
		if !ok {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("shape %v does not fit in %d bytes of data", info.Shape, dataSize),
			}
		}
		if want := n * size; end-start != want {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for %s %v (want %d)", end-start, info.DType, info.Shape, want),
			}
		}

		if i < len(names)-1 {
			next := tensors[names[i+1]]
			if end > next.DataOffsets[0] {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  name,
					Tensor2: names[i+1],
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						start, end, next.DataOffsets[0], next.DataOffsets[1]),
				}
			}
		}
	}
	return nil
}

// ValidateHeader checks names, dtypes, shapes and offsets of a parsed header.
func ValidateHeader(h *Header, dataSize int64) error {
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		if info.DType.Size() == 0 {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: string(info.DType)}
		}
		for _, d := range info.Shape {
			if d <= 0 {
				return &ValidationError{
					Err:     ErrInvalidHeader,
					Tensor:  name,
					Details: fmt.Sprintf("shape %v has a non-positive dimension", info.Shape),
				}
			}
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
