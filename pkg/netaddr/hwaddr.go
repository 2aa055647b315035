package netaddr

import (
	"bytes"
	"encoding/hex"
	"net"
	"strings"

	"github.com/zxhio/netdev/pkg/errcode"
)

type HwAddr [6]byte

const SizeofHwAddr = 6

var BroadcastHwAddr = HwAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (HwAddr) Type() string {
	return "HwAddr"
}

func (addr HwAddr) String() string {
	return net.HardwareAddr(addr[:]).String()
}

func (addr *HwAddr) Set(s string) error {
	hw, err := ParseHwAddr(s)
	if err != nil {
		return err
	}
	*addr = hw
	return nil
}

func (addr HwAddr) Compare(other HwAddr) int {
	return bytes.Compare(addr[:], other[:])
}

func (addr HwAddr) ToBytes() []byte {
	b := make([]byte, SizeofHwAddr)
	copy(b, addr[:])
	return b
}

// Uint64 zero-extends the 48-bit address.
func (addr HwAddr) Uint64() uint64 {
	var v uint64
	for _, b := range addr {
		v = v<<8 | uint64(b)
	}
	return v
}

func (addr HwAddr) IsZero() bool      { return addr == HwAddr{} }
func (addr HwAddr) IsBroadcast() bool { return addr == BroadcastHwAddr }

func (addr HwAddr) MarshalJSON() ([]byte, error) {
	return marshal(addr)
}

func (addr *HwAddr) UnmarshalJSON(data []byte) error {
	return unmarshal(addr, data)
}

// HwAddrFromUint64 keeps the low-order 48 bits of v.
func HwAddrFromUint64(v uint64) HwAddr {
	var addr HwAddr
	for i := SizeofHwAddr - 1; i >= 0; i-- {
		addr[i] = byte(v)
		v >>= 8
	}
	return addr
}

func NewHwAddrFromBytes(b []byte) (HwAddr, error) {
	if len(b) != SizeofHwAddr {
		return HwAddr{}, errcode.New(errcode.CodeValidation, "hardware address length %d, want %d", len(b), SizeofHwAddr)
	}
	return HwAddr(b), nil
}

// ParseHwAddr accepts six hex octets separated by ':' or '-'.
func ParseHwAddr(s string) (HwAddr, error) {
	sep := ":"
	if strings.IndexByte(s, '-') != -1 {
		sep = "-"
	}

	fields := strings.Split(s, sep)
	if len(fields) != SizeofHwAddr {
		return HwAddr{}, errcode.New(errcode.CodeValidation, "invalid hardware address: %s", s)
	}

	var addr HwAddr
	for i, field := range fields {
		if len(field) != 2 {
			return HwAddr{}, errcode.New(errcode.CodeValidation, "invalid hardware address: %s", s)
		}
		_, err := hex.Decode(addr[i:i+1], []byte(field))
		if err != nil {
			return HwAddr{}, errcode.New(errcode.CodeValidation, "invalid hardware address: %s", s)
		}
	}
	return addr, nil
}

func NewHwAddrFromHardwareAddr(hw net.HardwareAddr) HwAddr {
	var addr HwAddr
	copy(addr[:], hw)
	return addr
}
