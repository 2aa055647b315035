package netaddr

import (
	"net"
	"strconv"
	"strings"

	"github.com/zxhio/netdev/pkg/errcode"
)

// IPv4Addr 32-bit address int value
type IPv4Addr uint32

const SizeofIPv4Addr = 4

func (v4 IPv4Addr) ToIP() net.IP {
	return net.IPv4(byte(v4>>24), byte(v4>>16), byte(v4>>8), byte(v4))
}

func (v4 IPv4Addr) Bytes() [4]byte {
	return [4]byte{byte(v4 >> 24), byte(v4 >> 16), byte(v4 >> 8), byte(v4)}
}

// ToBytes returns a freshly allocated network order copy.
func (v4 IPv4Addr) ToBytes() []byte {
	b := v4.Bytes()
	return b[:]
}

func (v4 IPv4Addr) Uint32() uint32 { return uint32(v4) }

func (v4 IPv4Addr) Mask(mask IPv4Addr) IPv4Addr { return v4 & mask }

// SameSubnet reports whether v4 and other share the network part under mask.
func (v4 IPv4Addr) SameSubnet(other, mask IPv4Addr) bool {
	return v4&mask == other&mask
}

func (v4 IPv4Addr) IsZero() bool { return v4 == 0 }

func (IPv4Addr) Type() string {
	return "IPv4Addr"
}

func (v4 IPv4Addr) String() string {
	b := v4.Bytes()
	return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + "." + strconv.Itoa(int(b[2])) + "." + strconv.Itoa(int(b[3]))
}

func (v4 *IPv4Addr) Set(s string) error {
	addr, err := ParseIPv4Addr(s)
	if err != nil {
		return err
	}
	*v4 = addr
	return nil
}

func (v4 IPv4Addr) MarshalJSON() ([]byte, error) {
	return marshal(v4)
}

func (v4 *IPv4Addr) UnmarshalJSON(data []byte) error {
	return unmarshal(v4, data)
}

func NewIPv4AddrFromIP(ip net.IP) IPv4Addr {
	ip = ip.To4()
	if ip == nil {
		return 0
	}
	return IPv4Addr(uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]))
}

// NewIPv4AddrFromBytes builds an address from exactly 4 network order bytes.
func NewIPv4AddrFromBytes(b []byte) (IPv4Addr, error) {
	if len(b) != SizeofIPv4Addr {
		return 0, errcode.New(errcode.CodeValidation, "ipv4 address length %d, want %d", len(b), SizeofIPv4Addr)
	}
	return IPv4Addr(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

// ParseIPv4Addr accepts only the dotted quad form, e.g. 192.168.1.1.
func ParseIPv4Addr(s string) (IPv4Addr, error) {
	fields := strings.Split(s, ".")
	if len(fields) != SizeofIPv4Addr {
		return 0, errcode.New(errcode.CodeValidation, "invalid ip: %s", s)
	}

	var v4 IPv4Addr
	for _, field := range fields {
		if len(field) == 0 || len(field) > 3 {
			return 0, errcode.New(errcode.CodeValidation, "invalid ip: %s", s)
		}
		octet, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return 0, errcode.New(errcode.CodeValidation, "invalid ip: %s", s)
		}
		v4 = v4<<8 | IPv4Addr(octet)
	}
	return v4, nil
}

func MustParseIPv4Addr(s string) IPv4Addr {
	v4, err := ParseIPv4Addr(s)
	if err != nil {
		panic(err)
	}
	return v4
}

// NetmaskFromPrefixLen returns the mask of a /prefixLen network.
func NetmaskFromPrefixLen(prefixLen uint8) IPv4Addr {
	if prefixLen == 0 {
		return 0
	}
	if prefixLen >= 32 {
		return 0xffffffff
	}
	return IPv4Addr(0xffffffff << (32 - prefixLen))
}
