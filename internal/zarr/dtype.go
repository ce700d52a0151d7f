package zarr

import "fmt"

// DataType identifies the element type of the streamed array.
type DataType int

const (
	UInt8 DataType = iota
	UInt16
	UInt32
	UInt64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

// Size returns the element width in bytes.
func (d DataType) Size() int {
	switch d {
	case UInt8, Int8:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case UInt64, Int64, Float64:
		return 8
	}
	return 0
}

// String returns the plain type name, which doubles as the V3 metadata
// encoding ("uint8", "float32", ...).
func (d DataType) String() string {
	switch d {
	case UInt8:
		return "uint8"
	case UInt16:
		return "uint16"
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "invalid"
}

// V2 returns the numpy-style dtype encoding required by .zarray
// documents: byte-order prefix ("|" for single-byte, "<" little-endian
// otherwise), type character, and byte width.
func (d DataType) V2() string {
	var char byte
	switch d {
	case UInt8, UInt16, UInt32, UInt64:
		char = 'u'
	case Int8, Int16, Int32, Int64:
		char = 'i'
	case Float32, Float64:
		char = 'f'
	}
	size := d.Size()
	order := "<"
	if size == 1 {
		order = "|"
	}
	return fmt.Sprintf("%s%c%d", order, char, size)
}

// ParseDataType parses a plain type name as produced by String.
func ParseDataType(s string) (DataType, error) {
	for d := UInt8; d <= Float64; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown data type %q", ErrInvalidSettings, s)
}
