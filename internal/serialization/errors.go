package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch  = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidHeader     = errors.New("invalid safetensors header")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrOffsetOverlap     = errors.New("tensor offsets overlap")
	ErrOutOfBounds       = errors.New("tensor extends beyond data section")
	ErrNegativeOffset    = errors.New("negative offset or size")
	ErrSizeMismatch      = errors.New("tensor byte range does not match shape")
	ErrTooManyTensors    = errors.New("too many tensors in file")
	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrTensorNotFound    = errors.New("tensor not found")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Err     error  // Sentinel error (ErrOutOfBounds, ErrOffsetOverlap, ...)
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error, for errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
