package netutil

import "encoding/binary"

// Unsigned fixed-width field containers. Constructors keep the low-order
// bytes of the source. Widening conversions always zero-extend.

type U8 uint8

type U16 uint16

type U32 uint32

type U64 uint64

func NewU8(v int64) U8    { return U8(uint64(v) & 0xff) }
func NewU16(v int64) U16  { return U16(uint64(v) & 0xffff) }
func NewU32(v int64) U32  { return U32(uint64(v) & 0xffffffff) }
func NewU64(v uint64) U64 { return U64(v) }

func (v U8) Uint8() uint8   { return uint8(v) }
func (v U8) Uint16() uint16 { return uint16(v) }
func (v U8) Uint32() uint32 { return uint32(v) }
func (v U8) Uint64() uint64 { return uint64(v) }
func (v U8) Int() int       { return int(v) }
func (v U8) Bytes() []byte  { return []byte{byte(v)} }

func (v U16) Uint8() uint8   { return uint8(v) }
func (v U16) Uint16() uint16 { return uint16(v) }
func (v U16) Uint32() uint32 { return uint32(v) }
func (v U16) Uint64() uint64 { return uint64(v) }
func (v U16) Int() int       { return int(v) }
func (v U16) Bytes() []byte  { return binary.BigEndian.AppendUint16(nil, uint16(v)) }

func (v U32) Uint8() uint8   { return uint8(v) }
func (v U32) Uint16() uint16 { return uint16(v) }
func (v U32) Uint32() uint32 { return uint32(v) }
func (v U32) Uint64() uint64 { return uint64(v) }
func (v U32) Int() int       { return int(v) }
func (v U32) Bytes() []byte  { return binary.BigEndian.AppendUint32(nil, uint32(v)) }

func (v U64) Uint8() uint8   { return uint8(v) }
func (v U64) Uint16() uint16 { return uint16(v) }
func (v U64) Uint32() uint32 { return uint32(v) }
func (v U64) Uint64() uint64 { return uint64(v) }
func (v U64) Bytes() []byte  { return binary.BigEndian.AppendUint64(nil, uint64(v)) }

// U16FromBytes reads the first two bytes of b in network order.
func U16FromBytes(b []byte) U16 { return U16(binary.BigEndian.Uint16(b)) }
func U32FromBytes(b []byte) U32 { return U32(binary.BigEndian.Uint32(b)) }
func U64FromBytes(b []byte) U64 { return U64(binary.BigEndian.Uint64(b)) }
