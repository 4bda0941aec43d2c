package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"

	"github.com/zhongruiw/NAFNet/internal/tensor"
)

// chunkElements bounds the scratch buffer used to encode tensor data.
const chunkElements = 1 << 16

// WriteSafeTensors writes a state dictionary to a SafeTensors file at path.
//
// Tensors are stored as F32 in alphabetical order by name. The metadata map
// is copied into "__metadata__" together with a ChecksumKey entry.
func WriteSafeTensors(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := Encode(w, stateDict, metadata); err != nil {
		return err
	}
	return w.Flush()
}

// Encode writes a state dictionary in SafeTensors format to w.
func Encode(w io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		Metadata: make(map[string]string, len(metadata)+1),
		Tensors:  make(map[string]TensorInfo, len(names)),
	}
	maps.Copy(header.Metadata, metadata)

	var offset int64
	hash := sha256.New()
	buf := make([]byte, 0, 4*chunkElements)
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors[name] = TensorInfo{
			DType:       DTypeF32,
			Shape:       append([]int{}, raw.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size

		if err := writeF32(hash, raw.Data(), buf); err != nil {
			return err
		}
	}
	header.Metadata[ChecksumKey] = hex.EncodeToString(hash.Sum(nil))

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if err := writeF32(w, stateDict[name].Data(), buf); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// writeF32 streams data to w in chunks through buf.
func writeF32(w io.Writer, data []float32, buf []byte) error {
	for len(data) > 0 {
		n := min(len(data), chunkElements)
		if _, err := w.Write(encodeF32(buf[:0], data[:n])); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
