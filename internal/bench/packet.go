package bench

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
)

const maxPayload = 1400

type LayerEthernet struct {
	SrcMAC netaddr.HwAddr
	DstMAC netaddr.HwAddr
}

type LayerIPv4 struct {
	SrcIPv4 netaddr.IPv4Addr
	DstIPv4 netaddr.IPv4Addr
	TTL     uint8
}

type LayerPorts struct {
	SPort uint16
	DPort uint16
}

type LayerTCP struct {
	LayerPorts
	SYN         bool
	ACK         bool
	PSH         bool
	RST         bool
	FIN         bool
	Seq         uint32
	Payload     string
	PayloadPath string
}

func (tcp *LayerTCP) MakeSegment(ipv4 *fastpkt.IPv4, payload []byte) ([]byte, error) {
	ipv4.Protocol = fastpkt.IPProtocolTCP
	seg := fastpkt.TCP{
		SrcPort: valueOr(tcp.SPort, 54321),
		DstPort: valueOr(tcp.DPort, 12345),
		Seq:     valueOr(tcp.Seq, 12345),
		Window:  65535,
		Payload: payload,
		SrcIP:   ipv4.SrcIP,
		DstIP:   ipv4.DstIP,
	}
	for _, f := range []struct {
		set  bool
		flag fastpkt.TCPFlags
	}{
		{tcp.SYN, fastpkt.TCPFlagSYN},
		{tcp.ACK, fastpkt.TCPFlagACK},
		{tcp.PSH, fastpkt.TCPFlagPSH},
		{tcp.RST, fastpkt.TCPFlagRST},
		{tcp.FIN, fastpkt.TCPFlagFIN},
	} {
		if f.set {
			seg.Flags.Set(f.flag)
		}
	}
	return seg.Build()
}

func (tcp *LayerTCP) MakePayload() ([]byte, error) {
	return loadPayload(tcp.Payload, tcp.PayloadPath)
}

type LayerUDP struct {
	LayerPorts
	Payload     string
	PayloadPath string
}

func (udp *LayerUDP) MakeSegment(ipv4 *fastpkt.IPv4, payload []byte) ([]byte, error) {
	ipv4.Protocol = fastpkt.IPProtocolUDP
	dgram := fastpkt.UDP{
		SrcPort: valueOr(udp.SPort, 54321),
		DstPort: valueOr(udp.DPort, 12345),
		Payload: payload,
		SrcIP:   ipv4.SrcIP,
		DstIP:   ipv4.DstIP,
	}
	return dgram.Build()
}

func (udp *LayerUDP) MakePayload() ([]byte, error) {
	return loadPayload(udp.Payload, udp.PayloadPath)
}

type LayerICMP struct {
	ID  uint16
	Seq uint16
}

func (icmp4 *LayerICMP) MakeSegment(ipv4 *fastpkt.IPv4, payload []byte) ([]byte, error) {
	ipv4.Protocol = fastpkt.IPProtocolICMP
	echo := fastpkt.ICMP{
		Type:    fastpkt.ICMPTypeEchoRequest,
		ID:      valueOr(icmp4.ID, 12345),
		Seq:     valueOr(icmp4.Seq, 12345),
		Payload: payload,
	}
	return echo.Build()
}

func (*LayerICMP) MakePayload() ([]byte, error) {
	return []byte{
		0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
		0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f,
		0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37,
	}, nil
}

type layerOpts struct {
	tcp  *LayerTCP
	udp  *LayerUDP
	icmp *LayerICMP
	mtu  int
}

type LayerOpt func(*layerOpts)

func WithLayerTCP(tcp *LayerTCP) LayerOpt {
	return func(lo *layerOpts) { lo.tcp = tcp }
}

func WithLayerICMP(icmp *LayerICMP) LayerOpt {
	return func(lo *layerOpts) { lo.icmp = icmp }
}

func WithLayerUDP(udp *LayerUDP) LayerOpt {
	return func(lo *layerOpts) { lo.udp = udp }
}

// WithLayerMTU truncates the payload so the IP datagram fits in mtu.
func WithLayerMTU(mtu int) LayerOpt {
	return func(lo *layerOpts) { lo.mtu = mtu }
}

type l4Maker interface {
	MakeSegment(*fastpkt.IPv4, []byte) ([]byte, error)
	MakePayload() ([]byte, error)
}

// MakePacketData builds one Ethernet II frame. Addresses must already be
// filled in ether and ipv4.
func MakePacketData(ether *LayerEthernet, ipv4 *LayerIPv4, opts ...LayerOpt) ([]byte, error) {
	var o layerOpts
	for _, opt := range opts {
		opt(&o)
	}

	if ipv4.DstIPv4.IsZero() {
		return nil, errcode.New(errcode.CodeInvalid, "destination ip is required")
	}

	var l4m l4Maker
	if o.tcp != nil {
		l4m = o.tcp
	} else if o.udp != nil {
		l4m = o.udp
	} else if o.icmp != nil {
		l4m = o.icmp
	} else {
		return nil, fmt.Errorf("less l4 layer")
	}

	payload, err := l4m.MakePayload()
	if err != nil {
		return nil, err
	}
	if o.mtu > 0 {
		payload = payload[:max(0, min(len(payload), o.mtu-fastpkt.SizeofIPv4-fastpkt.SizeofTCP))]
	}

	ip := fastpkt.IPv4{TTL: valueOr(ipv4.TTL, 64), SrcIP: ipv4.SrcIPv4, DstIP: ipv4.DstIPv4}
	ip.Payload, err = l4m.MakeSegment(&ip, payload)
	if err != nil {
		return nil, err
	}
	ipData, err := ip.Build()
	if err != nil {
		return nil, err
	}

	eth := fastpkt.EthernetII{Dst: ether.DstMAC, Src: ether.SrcMAC, Type: fastpkt.EtherTypeIPv4, Payload: ipData}
	return eth.Build()
}

func loadPayload(s, path string) ([]byte, error) {
	if len(s) == 0 && len(path) != 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "os.ReadFile")
		}
		return data[:min(len(data), maxPayload)], nil
	}
	return []byte(s[:min(len(s), maxPayload)]), nil
}

func valueOr[T comparable](v T, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
