// Package compress provides the compression codecs used for container file
// payloads.
//
// A container file's body (YAML index plus binary dataset blocks) is
// compressed as one unit with the codec named in the file header. Four
// codecs are available:
//
//   - None: no compression, payload bytes stay inspectable
//   - Zstd: best ratio, for archived runs
//   - S2: fastest, the default for live acquisition
//   - LZ4: fast with a slightly better ratio than S2 on text-heavy indexes
//
// Codecs are looked up by format.CompressionType via GetCodec; all built-in
// codecs are safe for concurrent use.
package compress
