package fastpkt

import (
	"encoding/binary"

	"github.com/zxhio/netdev/pkg/netaddr"
)

// <linux/tcp.h>
//
// struct tcphdr {
// 	__be16	source;
// 	__be16	dest;
// 	__be32	seq;
// 	__be32	ack_seq;
// #if defined(__LITTLE_ENDIAN_BITFIELD)
// 	__u16	res1:4,
// 		doff:4,
// 		fin:1,
// 		syn:1,
// 		rst:1,
// 		psh:1,
// 		ack:1,
// 		urg:1,
// 		ece:1,
// 		cwr:1;
// #elif defined(__BIG_ENDIAN_BITFIELD)
// 	__u16	doff:4,
// 		res1:4,
// 		cwr:1,
// 		ece:1,
// 		urg:1,
// 		ack:1,
// 		psh:1,
// 		rst:1,
// 		syn:1,
// 		fin:1;
// #else
// #error	"Adjust your <asm/byteorder.h> defines"
// #endif
// 	__be16	window;
// 	__sum16	check;
// 	__be16	urg_ptr;
// };

const SizeofTCP = 20 // without options

type TCP struct {
	SrcPort  uint16
	DstPort  uint16
	Seq      uint32
	AckSeq   uint32
	DataOff  uint8    // 4 bits header length in 32-bit words
	Reserved uint8    // 4 bits
	Flags    TCPFlags // cwr, ece (the 2 ecn bits), urg, ack, psh, rst, syn, fin
	Window   uint16
	Check    uint16
	UrgPtr   uint16
	Options  []byte
	Payload  []byte

	// Pseudo header addresses, not on the wire. Build needs them.
	SrcIP netaddr.IPv4Addr
	DstIP netaddr.IPv4Addr
}

func (tcp *TCP) HeaderLen() int {
	n := len(tcp.Options)
	if n%4 != 0 {
		n += 4 - n%4
	}
	return SizeofTCP + n
}

func (tcp *TCP) Parse(data []byte, off int) error {
	if err := checkOffset("tcp", data, off, SizeofTCP); err != nil {
		return err
	}
	b := data[off:]
	tcp.SrcPort = binary.BigEndian.Uint16(b[0:2])
	tcp.DstPort = binary.BigEndian.Uint16(b[2:4])
	tcp.Seq = binary.BigEndian.Uint32(b[4:8])
	tcp.AckSeq = binary.BigEndian.Uint32(b[8:12])
	tcp.DataOff = b[12] >> 4
	tcp.Reserved = b[12] & 0x0f
	tcp.Flags = TCPFlags(b[13])
	tcp.Window = binary.BigEndian.Uint16(b[14:16])
	tcp.Check = binary.BigEndian.Uint16(b[16:18])
	tcp.UrgPtr = binary.BigEndian.Uint16(b[18:20])

	hlen := int(tcp.DataOff) * 4
	if hlen < SizeofTCP {
		return errInvalidHeader("tcp", "data offset %d less than %d", hlen, SizeofTCP)
	}
	if hlen > len(b) {
		return errTooShort("tcp", hlen, len(b))
	}

	tcp.Options = nil
	if hlen > SizeofTCP {
		tcp.Options = cloneBytes(b[SizeofTCP:hlen])
	}
	tcp.Payload = b[hlen:]
	return nil
}

// Build pads Options to a 32-bit boundary, recomputes DataOff in 32-bit
// words and fills the checksum over the pseudo header of SrcIP and DstIP.
// Nil Options means no options.
func (tcp *TCP) Build() ([]byte, error) {
	options, err := padOptions("tcp", tcp.Options)
	if err != nil {
		return nil, err
	}

	hlen := SizeofTCP + len(options)
	tcp.DataOff = uint8(hlen / 4)

	b := make([]byte, hlen+len(tcp.Payload))
	binary.BigEndian.PutUint16(b[0:2], tcp.SrcPort)
	binary.BigEndian.PutUint16(b[2:4], tcp.DstPort)
	binary.BigEndian.PutUint32(b[4:8], tcp.Seq)
	binary.BigEndian.PutUint32(b[8:12], tcp.AckSeq)
	b[12] = tcp.DataOff<<4 | tcp.Reserved&0x0f
	b[13] = uint8(tcp.Flags)
	binary.BigEndian.PutUint16(b[14:16], tcp.Window)
	binary.BigEndian.PutUint16(b[18:20], tcp.UrgPtr)
	copy(b[SizeofTCP:hlen], options)
	copy(b[hlen:], tcp.Payload)

	tcp.Check = TransportChecksum(IPProtocolTCP, tcp.SrcIP, tcp.DstIP, b)
	binary.BigEndian.PutUint16(b[16:18], tcp.Check)
	return b, nil
}

// ECN returns the two congestion notification bits (CWR, ECE).
func (tcp *TCP) ECN() uint8 { return uint8(tcp.Flags) >> 6 }

type TCPFlags uint8

const (
	TCPFlagFIN TCPFlags = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR

	TCPFlagsMask = TCPFlagFIN | TCPFlagSYN | TCPFlagRST | TCPFlagPSH | TCPFlagACK | TCPFlagURG | TCPFlagECE | TCPFlagCWR
)

func (flags *TCPFlags) Set(flag TCPFlags)      { *flags |= flag }
func (flags *TCPFlags) Clear(flag TCPFlags)    { *flags &= ^flag }
func (flags *TCPFlags) Has(flag TCPFlags) bool { return *flags&flag != 0 }

// String in tcpdump notation, e.g. S. for SYN-ACK.
func (flags TCPFlags) String() string {
	var s []byte
	for _, f := range []struct {
		flag TCPFlags
		c    byte
	}{
		{TCPFlagSYN, 'S'},
		{TCPFlagPSH, 'P'},
		{TCPFlagFIN, 'F'},
		{TCPFlagRST, 'R'},
		{TCPFlagURG, 'U'},
		{TCPFlagECE, 'E'},
		{TCPFlagCWR, 'W'},
		{TCPFlagACK, '.'},
	} {
		if flags&f.flag != 0 {
			s = append(s, f.c)
		}
	}
	return string(s)
}
