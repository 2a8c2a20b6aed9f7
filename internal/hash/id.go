// Package hash provides the xxHash64 digests used by container files.
package hash

import "github.com/cespare/xxhash/v2"

// Sum computes the xxHash64 digest of the given bytes. Container headers
// record this digest over the compressed body so readers can detect
// truncation or corruption before decoding.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}
