// Package format defines the enumerated types shared by the store and
// compress packages: the on-disk compression type of a container file and
// the element type of a stored dataset.
package format

type (
	CompressionType uint8
	DType           uint8
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	DTypeFloat64 DType = 0x1 // DTypeFloat64 represents 64-bit floating point elements.
	DTypeInt64   DType = 0x2 // DTypeInt64 represents 64-bit signed integer elements.
	DTypeBool    DType = 0x3 // DTypeBool represents boolean elements.
	DTypeBytes   DType = 0x4 // DTypeBytes represents fixed-width byte-string elements.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (d DType) String() string {
	switch d {
	case DTypeFloat64:
		return "Float64"
	case DTypeInt64:
		return "Int64"
	case DTypeBool:
		return "Bool"
	case DTypeBytes:
		return "Bytes"
	default:
		return "Unknown"
	}
}

// IsValid reports whether c names a known compression type.
func (c CompressionType) IsValid() bool {
	return c >= CompressionNone && c <= CompressionLZ4
}
