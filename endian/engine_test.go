package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()
	require.Equal(t, binary.LittleEndian, engine)

	buf := engine.AppendUint32(nil, 0x01020304)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf)
	require.Equal(t, uint32(0x01020304), engine.Uint32(buf))
}

func TestGetBigEndianEngine(t *testing.T) {
	engine := GetBigEndianEngine()
	require.Equal(t, binary.BigEndian, engine)

	buf := engine.AppendUint32(nil, 0x01020304)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
	require.Equal(t, uint32(0x01020304), engine.Uint32(buf))
}

func TestCheckEndianness(t *testing.T) {
	order := CheckEndianness()
	require.NotNil(t, order)

	// Exactly one of the two predicates holds.
	require.NotEqual(t, IsNativeLittleEndian(), IsNativeBigEndian())

	if IsNativeLittleEndian() {
		require.True(t, CompareNativeEndian(GetLittleEndianEngine()))
		require.False(t, CompareNativeEndian(GetBigEndianEngine()))
	} else {
		require.True(t, CompareNativeEndian(GetBigEndianEngine()))
		require.False(t, CompareNativeEndian(GetLittleEndianEngine()))
	}
}

func TestAppendUint64RoundTrip(t *testing.T) {
	for _, engine := range []EndianEngine{GetLittleEndianEngine(), GetBigEndianEngine()} {
		buf := engine.AppendUint64(nil, 0xdeadbeefcafe1234)
		require.Len(t, buf, 8)
		require.Equal(t, uint64(0xdeadbeefcafe1234), engine.Uint64(buf))
	}
}
