package fastpkt

import (
	"encoding/binary"

	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

// <linux/udp.h>
//
// struct udphdr {
//     __be16 source;
//     __be16 dest;
//     __be16 len;
//     __sum16 check;
// };

const SizeofUDP = 8

type UDP struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
	Check   uint16
	Payload []byte

	// Pseudo header addresses, not on the wire. Build needs them.
	SrcIP netaddr.IPv4Addr
	DstIP netaddr.IPv4Addr
}

func (*UDP) HeaderLen() int { return SizeofUDP }

func (udp *UDP) Parse(data []byte, off int) error {
	if err := checkOffset("udp", data, off, SizeofUDP); err != nil {
		return err
	}
	b := data[off:]
	udp.SrcPort = binary.BigEndian.Uint16(b[0:2])
	udp.DstPort = binary.BigEndian.Uint16(b[2:4])
	udp.Length = binary.BigEndian.Uint16(b[4:6])
	udp.Check = binary.BigEndian.Uint16(b[6:8])
	udp.Payload = b[SizeofUDP:]
	return nil
}

// Build sets Length to 8 plus the payload length. A computed checksum of
// zero goes on the wire as 0xffff.
func (udp *UDP) Build() ([]byte, error) {
	total := SizeofUDP + len(udp.Payload)
	if total > 0xffff {
		return nil, errcode.New(errcode.CodeValidation, "udp: length %d exceeds 65535", total)
	}
	udp.Length = uint16(total)

	b := make([]byte, total)
	binary.BigEndian.PutUint16(b[0:2], udp.SrcPort)
	binary.BigEndian.PutUint16(b[2:4], udp.DstPort)
	binary.BigEndian.PutUint16(b[4:6], udp.Length)
	copy(b[SizeofUDP:], udp.Payload)

	udp.Check = TransportChecksum(IPProtocolUDP, udp.SrcIP, udp.DstIP, b)
	if udp.Check == 0 {
		udp.Check = 0xffff
	}
	binary.BigEndian.PutUint16(b[6:8], udp.Check)
	return b, nil
}
