package fastpkt

import (
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"golang.org/x/sys/unix"
)

// Packet is the outermost to innermost decoding of one frame.
type Packet struct {
	L3Proto uint16
	L4Proto uint16

	L2Len uint8
	L3Len uint8
	L4Len uint8

	// L2
	Is8023 bool
	SrcMAC netaddr.HwAddr
	DstMAC netaddr.HwAddr

	// L3
	SrcIP netaddr.IPv4Addr
	DstIP netaddr.IPv4Addr

	// L4
	SrcPort uint16
	DstPort uint16

	// Decoded layers, valid according to L3Proto and L4Proto.
	Eth  EthernetII
	ARP  ARP
	IPv4 IPv4
	TCP  TCP
	UDP  UDP
	ICMP ICMP

	RxData []byte // Raw data received from the network (read only)
}

var emptyPacket = Packet{}

func (pkt *Packet) Clear() {
	*pkt = emptyPacket
}

func (pkt *Packet) DecodeFromData(data []byte) error {
	if len(data) < SizeofEthernet {
		return errTooShort("ethernet", SizeofEthernet, len(data))
	}

	pkt.RxData = data
	pkt.L2Len = uint8(SizeofEthernet)

	if !IsEthernetII(data, 0) {
		var eth Ethernet8023
		if err := eth.Parse(data, 0); err != nil {
			return err
		}
		pkt.Is8023 = true
		pkt.SrcMAC = eth.Src
		pkt.DstMAC = eth.Dst
		return nil
	}

	if err := pkt.Eth.Parse(data, 0); err != nil {
		return err
	}
	pkt.SrcMAC = pkt.Eth.Src
	pkt.DstMAC = pkt.Eth.Dst

	switch pkt.Eth.Type {
	case unix.ETH_P_ARP:
		return pkt.DecodePacketARP(pkt.Eth.Payload)
	case unix.ETH_P_IP:
		return pkt.DecodePacketIPv4(pkt.Eth.Payload)
	default:
		return errcode.Wrap(errcode.CodeParse, ErrPacketInvalidEthernetType, "ethernet: type 0x%04x", pkt.Eth.Type)
	}
}

func (pkt *Packet) DecodePacketARP(data []byte) error {
	if err := pkt.ARP.Parse(data, 0); err != nil {
		return err
	}

	pkt.L3Proto = unix.ETH_P_ARP
	pkt.L3Len = uint8(SizeofARP)

	// IPv4
	if pkt.ARP.ProtLen == ARPProtLenMax {
		pkt.SrcIP, _ = pkt.ARP.SrcIP()
		pkt.DstIP, _ = pkt.ARP.TargetIP()
	}
	return nil
}

func (pkt *Packet) DecodePacketIPv4(data []byte) error {
	if err := pkt.IPv4.Parse(data, 0); err != nil {
		return err
	}

	ip := &pkt.IPv4
	pkt.L3Proto = unix.ETH_P_IP
	pkt.SrcIP = ip.SrcIP
	pkt.DstIP = ip.DstIP
	pkt.L3Len = uint8(ip.IHL) * 4

	switch ip.Protocol {
	case unix.IPPROTO_TCP:
		return pkt.DecodePacketTCP(ip.Payload)
	case unix.IPPROTO_UDP:
		return pkt.DecodePacketUDP(ip.Payload)
	case unix.IPPROTO_ICMP:
		return pkt.DecodePacketICMP(ip.Payload)
	default:
		return errcode.Wrap(errcode.CodeParse, ErrPacketInvalidProtocol, "ipv4: protocol %d", ip.Protocol)
	}
}

func (pkt *Packet) DecodePacketTCP(data []byte) error {
	if err := pkt.TCP.Parse(data, 0); err != nil {
		return err
	}

	pkt.L4Proto = unix.IPPROTO_TCP
	pkt.SrcPort = pkt.TCP.SrcPort
	pkt.DstPort = pkt.TCP.DstPort
	pkt.L4Len = pkt.TCP.DataOff * 4
	pkt.TCP.SrcIP = pkt.SrcIP
	pkt.TCP.DstIP = pkt.DstIP
	return nil
}

func (pkt *Packet) DecodePacketUDP(data []byte) error {
	if err := pkt.UDP.Parse(data, 0); err != nil {
		return err
	}

	pkt.L4Proto = unix.IPPROTO_UDP
	pkt.SrcPort = pkt.UDP.SrcPort
	pkt.DstPort = pkt.UDP.DstPort
	pkt.L4Len = uint8(SizeofUDP)
	pkt.UDP.SrcIP = pkt.SrcIP
	pkt.UDP.DstIP = pkt.DstIP
	return nil
}

func (pkt *Packet) DecodePacketICMP(data []byte) error {
	if err := pkt.ICMP.Parse(data, 0); err != nil {
		return err
	}

	pkt.L4Proto = unix.IPPROTO_ICMP
	pkt.SrcPort = 0
	pkt.DstPort = 0
	pkt.L4Len = uint8(SizeofICMP)
	return nil
}

func NewPacket(data []byte) (*Packet, error) {
	pkt := &Packet{}
	return pkt, pkt.DecodeFromData(data)
}
