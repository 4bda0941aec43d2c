package serialization

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is a SafeTensors element type.
type DType string

// Readable dtypes. Only F32 is written.
const (
	DTypeF32  DType = "F32"
	DTypeF64  DType = "F64"
	DTypeF16  DType = "F16"
	DTypeBF16 DType = "BF16"
)

// Size returns the element size in bytes, or 0 for an unsupported dtype.
func (d DType) Size() int {
	switch d {
	case DTypeF32:
		return 4
	case DTypeF64:
		return 8
	case DTypeF16, DTypeBF16:
		return 2
	default:
		return 0
	}
}

// decode converts little-endian element bytes to float32.
func decode(dtype DType, data []byte, dst []float32) error {
	size := dtype.Size()
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
	if len(data) != len(dst)*size {
		return fmt.Errorf("%w: %d bytes for %d %s elements", ErrSizeMismatch, len(data), len(dst), dtype)
	}

	switch dtype {
	case DTypeF32:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case DTypeF64:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:])))
		}
	case DTypeF16:
		for i := range dst {
			dst[i] = float16ToFloat32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case DTypeBF16:
		for i := range dst {
			dst[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(data[i*2:])) << 16)
		}
	}
	return nil
}

// encodeF32 appends the little-endian bytes of src to dst.
func encodeF32(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// float16ToFloat32 converts IEEE 754 half precision to float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var result uint32
	switch exp {
	case 0:
		if mant == 0 {
			result = sign << 31
			break
		}
		// Subnormal: normalize.
		exp = 1
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= 0x3FF
		result = sign<<31 | uint32(exp+127-15)<<23 | mant<<13
	case 0x1F:
		result = sign<<31 | 0x7F800000 | mant<<13
	default:
		result = sign<<31 | uint32(exp+127-15)<<23 | mant<<13
	}
	return math.Float32frombits(result)
}
