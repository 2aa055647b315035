package fastpkt

import (
	"encoding/binary"

	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/netutil"
)

// <linux/ip.h>
//
// struct iphdr {
// #if defined(__LITTLE_ENDIAN_BITFIELD)
//     unsigned int ihl : 4, version : 4;
// #elif defined(__BIG_ENDIAN_BITFIELD)
//     unsigned int version : 4, ihl : 4;
// #else
// #error "Please fix <asm/byteorder.h>"
// #endif
//     __u8 tos;        // Type of Service
//     __be16 tot_len;  // Total Length
//     __be16 id;       // Identification
//     __be16 frag_off; // Fragment Offset and Flags
//     __u8 ttl;        // Time to Live
//     __u8 protocol;   // Protocol (TCP, UDP, etc.)
//     __u16 check;     // Header Checksum
//     __be32 saddr;    // Source IP Address
//     __be32 daddr;    // Destination IP Address
// };

const (
	SizeofIPv4  = 20 // without options
	IPv4Version = 4
)

// 3-bit flags field
const (
	IPv4FlagMoreFragments uint8 = 0x1
	IPv4FlagDontFragment  uint8 = 0x2
)

type IPv4 struct {
	Version  uint8  // 4 bits
	IHL      uint8  // 4 bits, header length in 32-bit words
	TOS      uint8  // type of service
	Len      uint16 // total length
	ID       uint16 // identification
	Flags    uint8  // 3 bits
	FragOff  uint16 // 13 bits
	TTL      uint8  // time to live
	Protocol uint8  // protocol
	Checksum uint16 // checksum
	SrcIP    netaddr.IPv4Addr
	DstIP    netaddr.IPv4Addr
	Options  []byte
	Payload  []byte
}

// HeaderLen is the header length in bytes including options. It follows
// Options, so it is also the length Build produces.
func (ip *IPv4) HeaderLen() int {
	n := len(ip.Options)
	if n%4 != 0 {
		n += 4 - n%4
	}
	return SizeofIPv4 + n
}

// Parse keeps every byte after the header as Payload regardless of Len, so
// data appended past the declared total length survives.
func (ip *IPv4) Parse(data []byte, off int) error {
	if err := checkOffset("ipv4", data, off, SizeofIPv4); err != nil {
		return err
	}
	b := data[off:]
	ip.Version = b[0] >> 4
	ip.IHL = b[0] & 0x0f
	ip.TOS = b[1]
	ip.Len = netutil.U16FromBytes(b[2:4]).Uint16()
	ip.ID = netutil.U16FromBytes(b[4:6]).Uint16()
	flagsFrag := netutil.U16FromBytes(b[6:8])
	ip.Flags = netutil.NewU8(int64(flagsFrag >> 13)).Uint8()
	ip.FragOff = flagsFrag.Uint16() & 0x1fff
	ip.TTL = b[8]
	ip.Protocol = b[9]
	ip.Checksum = netutil.U16FromBytes(b[10:12]).Uint16()
	ip.SrcIP = netaddr.IPv4Addr(netutil.U32FromBytes(b[12:16]).Uint32())
	ip.DstIP = netaddr.IPv4Addr(netutil.U32FromBytes(b[16:20]).Uint32())

	hlen := int(ip.IHL) * 4
	if hlen < SizeofIPv4 {
		return errInvalidHeader("ipv4", "header length %d less than %d", hlen, SizeofIPv4)
	}
	if hlen > len(b) {
		return errTooShort("ipv4", hlen, len(b))
	}

	ip.Options = nil
	if hlen > SizeofIPv4 {
		ip.Options = cloneBytes(b[SizeofIPv4:hlen])
	}
	ip.Payload = b[hlen:]
	return nil
}

// Build recomputes IHL, Len and Checksum. The checksum covers the header
// and options only.
func (ip *IPv4) Build() ([]byte, error) {
	options, err := padOptions("ipv4", ip.Options)
	if err != nil {
		return nil, err
	}

	hlen := SizeofIPv4 + len(options)
	total := hlen + len(ip.Payload)
	if total > 0xffff {
		return nil, errcode.New(errcode.CodeValidation, "ipv4: total length %d exceeds 65535", total)
	}
	if ip.Version == 0 {
		ip.Version = IPv4Version
	}
	ip.IHL = netutil.NewU8(int64(hlen / 4)).Uint8()
	ip.Len = netutil.NewU16(int64(total)).Uint16()

	b := make([]byte, total)
	b[0] = ip.Version<<4 | ip.IHL
	b[1] = ip.TOS
	binary.BigEndian.PutUint16(b[2:4], ip.Len)
	binary.BigEndian.PutUint16(b[4:6], ip.ID)
	binary.BigEndian.PutUint16(b[6:8], uint16(ip.Flags&0x7)<<13|ip.FragOff&0x1fff)
	b[8] = ip.TTL
	b[9] = ip.Protocol
	binary.BigEndian.PutUint32(b[12:16], ip.SrcIP.Uint32())
	binary.BigEndian.PutUint32(b[16:20], ip.DstIP.Uint32())
	copy(b[SizeofIPv4:hlen], options)

	ip.Checksum = InternetChecksum(b, hlen)
	binary.BigEndian.PutUint16(b[10:12], ip.Checksum)

	copy(b[hlen:], ip.Payload)
	return b, nil
}

// VerifyIPv4Checksum reports whether the header at data[off:] sums to zero.
func VerifyIPv4Checksum(data []byte, off int) bool {
	if off < 0 || len(data)-off < SizeofIPv4 {
		return false
	}
	hlen := int(data[off]&0x0f) * 4
	if hlen < SizeofIPv4 || len(data)-off < hlen {
		return false
	}
	return InternetChecksum(data[off:], hlen) == 0
}
