package fastpkt

import "encoding/binary"

// <linux/icmp.h>
//
// struct icmphdr {
//     __u8 type;
//     __u8 code;
//     __sum16 checksum;
//     union {
//         struct {
//             __be16 id;
//             __be16 sequence;
//         } echo;
//         __be32 gateway;
//         struct {
//             __be16 mtu;
//             __u8 void;
//         } frag;
//     };
// };

const (
	SizeofICMP = 8

	ICMPTypeEchoReply   uint8 = 0
	ICMPTypeEchoRequest uint8 = 8
)

// ICMP echo request or reply.
type ICMP struct {
	Type     uint8
	Code     uint8
	Checksum uint16

	// Echo
	ID  uint16
	Seq uint16

	Payload []byte
}

func (*ICMP) HeaderLen() int { return SizeofICMP }

func (icmp *ICMP) Parse(data []byte, off int) error {
	if err := checkOffset("icmp", data, off, SizeofICMP); err != nil {
		return err
	}
	b := data[off:]
	icmp.Type = b[0]
	icmp.Code = b[1]
	icmp.Checksum = binary.BigEndian.Uint16(b[2:4])
	icmp.ID = binary.BigEndian.Uint16(b[4:6])
	icmp.Seq = binary.BigEndian.Uint16(b[6:8])
	icmp.Payload = b[SizeofICMP:]
	return nil
}

// Build fills the checksum over the whole message.
func (icmp *ICMP) Build() ([]byte, error) {
	b := make([]byte, SizeofICMP+len(icmp.Payload))
	b[0] = icmp.Type
	b[1] = icmp.Code
	binary.BigEndian.PutUint16(b[4:6], icmp.ID)
	binary.BigEndian.PutUint16(b[6:8], icmp.Seq)
	copy(b[SizeofICMP:], icmp.Payload)

	icmp.Checksum = InternetChecksum(b, len(b))
	binary.BigEndian.PutUint16(b[2:4], icmp.Checksum)
	return b, nil
}
