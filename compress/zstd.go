package compress

// ZstdCompressor compresses container payloads with Zstandard.
//
// Zstd trades some encoding speed for a notably better ratio than S2 or LZ4,
// which suits archived runs that are written once and read rarely. Two
// implementations exist: a pure-Go one (default) and a cgo one selected by
// the cgo build tag; both produce interchangeable frames.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
