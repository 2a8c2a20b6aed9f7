// Package endian provides byte order utilities for encoding and decoding
// dataset payloads in container files.
//
// It combines the ByteOrder and AppendByteOrder interfaces from the standard
// encoding/binary package into a single EndianEngine interface, so payload
// writers can append fixed-width values without intermediate buffers:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint64(buf, math.Float64bits(v))
//
// All functions and methods in this package are safe for concurrent use; the
// returned engines are immutable and stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
// It is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. On a little-endian host the low byte (0x00) comes
	// first in memory; on a big-endian host the high byte (0x01) does.
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host is little-endian.
func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// IsNativeBigEndian reports whether the host is big-endian.
func IsNativeBigEndian() bool {
	return CheckEndianness() == binary.BigEndian
}

// CompareNativeEndian reports whether engine matches the host byte order.
func CompareNativeEndian(engine EndianEngine) bool {
	return engine == CheckEndianness()
}

// GetLittleEndianEngine returns the little-endian engine. Container files
// are written little-endian regardless of the host.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
