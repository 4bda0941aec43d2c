package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// ReaderOptions configures the behavior of SafeTensorsReader.
type ReaderOptions struct {
	// SkipChecksumValidation skips the SHA-256 check of the data section
	// even when the file carries one.
	SkipChecksumValidation bool
}

// SafeTensorsReader reads tensors from a SafeTensors file.
type SafeTensorsReader struct {
	file       *os.File
	header     Header
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64 // Size of the data section
}

// NewSafeTensorsReader opens path, parses and validates its header, and
// verifies the data checksum when the file has one.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return NewSafeTensorsReaderWithOptions(path, ReaderOptions{})
}

// NewSafeTensorsReaderWithOptions is NewSafeTensorsReader with custom options.
func NewSafeTensorsReaderWithOptions(path string, opts ReaderOptions) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &SafeTensorsReader{file: file}
	if err := r.init(opts); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *SafeTensorsReader) init(opts ReaderOptions) error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("%w: failed to read header size: %v", ErrInvalidHeader, err)
	}
	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize.
	r.dataOffset = 8 + int64(headerSize)
	if r.dataOffset > info.Size() {
		return fmt.Errorf("%w: header size %d exceeds file size %d", ErrInvalidHeader, headerSize, info.Size())
	}
	r.dataSize = info.Size() - r.dataOffset

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("%w: failed to read header: %v", ErrInvalidHeader, err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("%w: failed to parse header JSON: %v", ErrInvalidHeader, err)
	}

	if err := ValidateHeader(&r.header, r.dataSize); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	stored, ok := r.header.Metadata[ChecksumKey]
	if !ok || opts.SkipChecksumValidation {
		return nil
	}
	computed, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
	if err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	return ValidateChecksum(computed, stored)
}

// Metadata returns the "__metadata__" map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in the file, sorted.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return info, nil
}

// LoadTensor reads one tensor and converts it to float32.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}

	raw, err := tensor.NewRaw(tensor.Shape(info.Shape), tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor %s: %w", name, err)
	}
	if err := decode(info.DType, data, raw.Data()); err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict reads every tensor into a state dictionary.
func (r *SafeTensorsReader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for name := range r.header.Tensors {
		raw, err := r.LoadTensor(name)
		if err != nil {
			return nil, err
		}
		stateDict[name] = raw
	}
	return stateDict, nil
}

// Close closes the underlying file.
func (r *SafeTensorsReader) Close() error {
	return r.file.Close()
}

// ReadSafeTensors reads a whole SafeTensors file into a state dictionary and
// returns it with the file's metadata.
func ReadSafeTensors(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = r.Close() // Best effort close
	}()

	stateDict, err := r.ReadStateDict()
	if err != nil {
		return nil, nil, err
	}
	return stateDict, r.Metadata(), nil
}
