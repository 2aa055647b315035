package netaddr

import (
	"math/bits"
	"net"
	"strings"

	"github.com/zxhio/netdev/pkg/errcode"
)

// IPv4Prefix network address and prefix length, e.g. 192.168.10.0/24
type IPv4Prefix struct {
	Addr      IPv4Addr `json:"addr,omitempty"`
	PrefixLen uint8    `json:"prefix_len,omitempty"`
}

func (p IPv4Prefix) Compare(other IPv4Prefix) int {
	if p.Addr < other.Addr {
		return -1
	}
	if p.Addr > other.Addr {
		return 1
	}
	if p.PrefixLen < other.PrefixLen {
		return -1
	}
	if p.PrefixLen > other.PrefixLen {
		return 1
	}
	return 0
}

func (p IPv4Prefix) Netmask() IPv4Addr {
	return NetmaskFromPrefixLen(p.PrefixLen)
}

func (p IPv4Prefix) ContainsAddrV4(addrV4 IPv4Addr) bool {
	return p.Addr.SameSubnet(addrV4, p.Netmask())
}

func (p IPv4Prefix) Type() string {
	return "IPv4Prefix"
}

func (p *IPv4Prefix) Set(s string) error {
	sp, err := NewIPv4PrefixFromStr(s)
	if err != nil {
		return err
	}
	*p = sp
	return nil
}

func (p IPv4Prefix) String() string {
	ipnet := net.IPNet{IP: p.Addr.ToIP(), Mask: net.CIDRMask(int(p.PrefixLen), 32)}
	return ipnet.String()
}

func NewIPv4PrefixFromCIDRStr(cidr string) (IPv4Prefix, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil || ipnet.IP.To4() == nil {
		return IPv4Prefix{}, errcode.New(errcode.CodeValidation, "invalid cidr: %s", cidr)
	}
	ones, _ := ipnet.Mask.Size()
	return IPv4Prefix{Addr: NewIPv4AddrFromIP(ipnet.IP), PrefixLen: uint8(ones)}, nil
}

func NewIPv4PrefixFromIPStr(ipStr string) (IPv4Prefix, error) {
	addr, err := ParseIPv4Addr(ipStr)
	if err != nil {
		return IPv4Prefix{}, err
	}
	return IPv4Prefix{Addr: addr, PrefixLen: 32}, nil
}

// NewIPv4PrefixFromMask returns the network containing addr under mask.
func NewIPv4PrefixFromMask(addr, mask IPv4Addr) IPv4Prefix {
	prefixLen := uint8(bits.LeadingZeros32(^uint32(mask)))
	return IPv4Prefix{Addr: addr.Mask(mask), PrefixLen: prefixLen}
}

// NewIPv4PrefixFromStr support both ip/cidr
func NewIPv4PrefixFromStr(s string) (IPv4Prefix, error) {
	if strings.IndexByte(s, '/') == -1 {
		return NewIPv4PrefixFromIPStr(s)
	}
	return NewIPv4PrefixFromCIDRStr(s)
}
