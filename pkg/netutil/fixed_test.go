package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTruncate(t *testing.T) {
	assert.Equal(t, U8(0x34), NewU8(0x1234))
	assert.Equal(t, U16(0x5678), NewU16(0x12345678))
	assert.Equal(t, U32(0x9abcdef0), NewU32(0x123456789abcdef0))

	// -1 keeps all low-order bits set, no sign on widen
	assert.Equal(t, U8(0xff), NewU8(-1))
	assert.Equal(t, uint32(0xff), NewU8(-1).Uint32())
	assert.Equal(t, uint64(0xffff), NewU16(-1).Uint64())
	assert.Equal(t, 0xffffffff, NewU32(-1).Int())
}

func TestFixedNarrow(t *testing.T) {
	v := NewU32(0xaabbccdd)
	assert.Equal(t, uint8(0xdd), v.Uint8())
	assert.Equal(t, uint16(0xccdd), v.Uint16())
	assert.Equal(t, uint32(0x1122ccdd), NewU64(0xaabbccdd1122ccdd).Uint32())
}

func TestFixedBytes(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34}, NewU16(0x1234).Bytes())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, NewU32(0xdeadbeef).Bytes())
	assert.Equal(t, U16(0x1234), U16FromBytes([]byte{0x12, 0x34}))
	assert.Equal(t, U32(0xdeadbeef), U32FromBytes([]byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Equal(t, U64(1), U64FromBytes([]byte{0, 0, 0, 0, 0, 0, 0, 1}))
	assert.Equal(t, []byte{7}, NewU8(7).Bytes())
}
