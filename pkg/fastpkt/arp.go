package fastpkt

import (
	"encoding/binary"

	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

// <linux/if_arp.h>
//
// struct arphdr {
//     __be16 ar_hrd;        /* format of hardware address	*/
//     __be16 ar_pro;        /* format of protocol address	*/
//     unsigned char ar_hln; /* length of hardware address	*/
//     unsigned char ar_pln; /* length of protocol address	*/
//     __be16 ar_op;         /* ARP opcode (command)		*/
// };
//
// Followed by sender/target hardware and protocol addresses, laid out here
// in fixed 6 and 4 byte slots.

const (
	SizeofARP = 28

	ARPHwTypeEthernet uint16 = 1
	ARPHwLenMax       uint8  = 6
	ARPProtLenMax     uint8  = 4

	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

type ARP struct {
	HwType         uint16
	ProtType       uint16
	HwLen          uint8
	ProtLen        uint8
	Opcode         uint16
	SrcHwAddr      []byte
	SrcProtAddr    []byte
	TargetHwAddr   []byte
	TargetProtAddr []byte
	Payload        []byte
}

func (*ARP) HeaderLen() int { return SizeofARP }

// Parse always consumes the fixed 28 byte layout. Address lengths outside
// 0..6 (hardware) and 0..4 (protocol) fall back to the maximum; HwLen and
// ProtLen keep the raw wire values.
func (arp *ARP) Parse(data []byte, off int) error {
	if err := checkOffset("arp", data, off, SizeofARP); err != nil {
		return err
	}
	b := data[off:]
	arp.HwType = binary.BigEndian.Uint16(b[0:2])
	arp.ProtType = binary.BigEndian.Uint16(b[2:4])
	arp.HwLen = b[4]
	arp.ProtLen = b[5]
	arp.Opcode = binary.BigEndian.Uint16(b[6:8])

	hwLen, protLen := arp.effectiveLens()
	hw, prot := int(ARPHwLenMax), int(ARPProtLenMax)
	pos := 8
	arp.SrcHwAddr = cloneBytes(b[pos : pos+hwLen])
	pos += hw
	arp.SrcProtAddr = cloneBytes(b[pos : pos+protLen])
	pos += prot
	arp.TargetHwAddr = cloneBytes(b[pos : pos+hwLen])
	pos += hw
	arp.TargetProtAddr = cloneBytes(b[pos : pos+protLen])

	arp.Payload = b[SizeofARP:]
	return nil
}

func (arp *ARP) effectiveLens() (int, int) {
	hwLen, protLen := arp.HwLen, arp.ProtLen
	if hwLen > ARPHwLenMax {
		hwLen = ARPHwLenMax
	}
	if protLen > ARPProtLenMax {
		protLen = ARPProtLenMax
	}
	return int(hwLen), int(protLen)
}

// Build writes addresses into their fixed slots, zero-padding short ones.
func (arp *ARP) Build() ([]byte, error) {
	b := make([]byte, SizeofARP+len(arp.Payload))
	binary.BigEndian.PutUint16(b[0:2], arp.HwType)
	binary.BigEndian.PutUint16(b[2:4], arp.ProtType)
	b[4] = arp.HwLen
	b[5] = arp.ProtLen
	binary.BigEndian.PutUint16(b[6:8], arp.Opcode)

	slots := []struct {
		name string
		addr []byte
		size int
	}{
		{"sender hardware", arp.SrcHwAddr, int(ARPHwLenMax)},
		{"sender protocol", arp.SrcProtAddr, int(ARPProtLenMax)},
		{"target hardware", arp.TargetHwAddr, int(ARPHwLenMax)},
		{"target protocol", arp.TargetProtAddr, int(ARPProtLenMax)},
	}
	pos := 8
	for _, slot := range slots {
		if len(slot.addr) > slot.size {
			return nil, errcode.New(errcode.CodeValidation, "arp: %s address length %d exceeds %d", slot.name, len(slot.addr), slot.size)
		}
		copy(b[pos:pos+slot.size], slot.addr)
		pos += slot.size
	}

	copy(b[SizeofARP:], arp.Payload)
	return b, nil
}

func (arp *ARP) SrcIP() (netaddr.IPv4Addr, error) {
	return netaddr.NewIPv4AddrFromBytes(arp.SrcProtAddr)
}

func (arp *ARP) TargetIP() (netaddr.IPv4Addr, error) {
	return netaddr.NewIPv4AddrFromBytes(arp.TargetProtAddr)
}

func (arp *ARP) SrcHw() (netaddr.HwAddr, error) {
	return netaddr.NewHwAddrFromBytes(arp.SrcHwAddr)
}

// NewARPRequest asks who has target, telling srcIP at srcHw.
func NewARPRequest(srcHw netaddr.HwAddr, srcIP, target netaddr.IPv4Addr) *ARP {
	return &ARP{
		HwType:         ARPHwTypeEthernet,
		ProtType:       EtherTypeIPv4,
		HwLen:          ARPHwLenMax,
		ProtLen:        ARPProtLenMax,
		Opcode:         ARPRequest,
		SrcHwAddr:      srcHw.ToBytes(),
		SrcProtAddr:    srcIP.ToBytes(),
		TargetHwAddr:   make([]byte, ARPHwLenMax),
		TargetProtAddr: target.ToBytes(),
	}
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
