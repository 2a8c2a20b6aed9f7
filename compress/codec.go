package compress

import (
	"fmt"

	"github.com/measuredat/nexo/format"
)

// Compressor compresses a container payload before it is written to storage.
//
// Payloads are the serialized body of a container file: the YAML index plus
// the binary dataset blocks. They compress well because dataset payloads are
// columnar and timestamps are near-monotonic.
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	//
	// The returned slice is newly allocated and owned by the caller; the
	// input slice is not modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a container payload read from storage.
type Decompressor interface {
	// Decompress decompresses data previously compressed with the matching
	// algorithm. Returns an error if the data is corrupted or was produced
	// by an incompatible codec.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
