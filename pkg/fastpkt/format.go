package fastpkt

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

type formatOpts struct {
	showEthernet bool
	portNames    bool
}

type FormatOpt func(*formatOpts)

func WithFormatEthernet() FormatOpt {
	return func(o *formatOpts) { o.showEthernet = true }
}

// WithFormatPortNames prints well-known ports by service name.
func WithFormatPortNames() FormatOpt {
	return func(o *formatOpts) { o.portNames = true }
}

type FormatDelimiter string

const (
	FormatDelimiterNone  FormatDelimiter = ""
	FormatDelimiterSpace FormatDelimiter = " "
	FormatDelimiterComma FormatDelimiter = ", "
	FormatDelimiterColon FormatDelimiter = ": "
)

type LayerKind uint8

const (
	LayerKindEthernet LayerKind = iota + 1
	LayerKind8023
	LayerKindARP
	LayerKindIPv4
	LayerKindICMP
	LayerKindUDP
	LayerKindTCP
)

type LayerFormatter interface {
	Kind() LayerKind
	Format(pkt *Packet, o *formatOpts) (string, FormatDelimiter)
}

var formatters map[LayerKind]LayerFormatter

func init() {
	formatters = make(map[LayerKind]LayerFormatter)

	Register(LayerFormatterEthernet{})
	Register(LayerFormatter8023{})
	Register(LayerFormatterARP{})
	Register(LayerFormatterIPv4{})
	Register(LayerFormatterICMP{})
	Register(LayerFormatterUDP{})
	Register(LayerFormatterTCP{})
}

func Register(layer LayerFormatter) {
	formatters[layer.Kind()] = layer
}

func GetLayerFormatter(kind LayerKind) (LayerFormatter, bool) {
	formatter, ok := formatters[kind]
	return formatter, ok
}

// Layers lists the decoded layers outermost first.
func (pkt *Packet) Layers() []LayerKind {
	if pkt.L2Len == 0 {
		return nil
	}
	if pkt.Is8023 {
		return []LayerKind{LayerKind8023}
	}

	kinds := []LayerKind{LayerKindEthernet}
	switch pkt.L3Proto {
	case unix.ETH_P_ARP:
		return append(kinds, LayerKindARP)
	case unix.ETH_P_IP:
		kinds = append(kinds, LayerKindIPv4)
	default:
		return kinds
	}

	switch pkt.L4Proto {
	case unix.IPPROTO_ICMP:
		kinds = append(kinds, LayerKindICMP)
	case unix.IPPROTO_UDP:
		kinds = append(kinds, LayerKindUDP)
	case unix.IPPROTO_TCP:
		kinds = append(kinds, LayerKindTCP)
	}
	return kinds
}

// 02:42:6d:09:05:c4 > 02:42:ac:11:00:0a, ethertype IPv4 (0x0800), length 98:
type LayerFormatterEthernet struct{}

func (LayerFormatterEthernet) Kind() LayerKind { return LayerKindEthernet }

func (LayerFormatterEthernet) Format(pkt *Packet, o *formatOpts) (string, FormatDelimiter) {
	eth := &pkt.Eth
	if o.showEthernet {
		return fmt.Sprintf("%s > %s, ethertype %s (0x%04x), length %d",
			eth.Src, eth.Dst, EtherTypeName(eth.Type), eth.Type, len(pkt.RxData)), FormatDelimiterColon
	}

	if eth.Type == EtherTypeIPv4 || eth.Type == EtherTypeARP {
		return EtherTypeName(eth.Type), FormatDelimiterSpace
	}
	return fmt.Sprintf("ethertype %s (0x%04x), length %d", EtherTypeName(eth.Type), eth.Type, len(pkt.RxData)), FormatDelimiterNone
}

// 02:42:6d:09:05:c4 > 01:80:c2:00:00:00, 802.3, length 38
type LayerFormatter8023 struct{}

func (LayerFormatter8023) Kind() LayerKind { return LayerKind8023 }

func (LayerFormatter8023) Format(pkt *Packet, _ *formatOpts) (string, FormatDelimiter) {
	return fmt.Sprintf("%s > %s, 802.3, length %d", pkt.SrcMAC, pkt.DstMAC, len(pkt.RxData)-SizeofEthernet), FormatDelimiterNone
}

// Request who-has 172.17.0.1 tell 172.17.0.10, length 28
// Reply 172.17.0.1 is-at 02:42:6d:09:05:c4, length 28
type LayerFormatterARP struct{}

func (LayerFormatterARP) Kind() LayerKind { return LayerKindARP }

func (LayerFormatterARP) Format(pkt *Packet, _ *formatOpts) (string, FormatDelimiter) {
	arp := &pkt.ARP
	length := SizeofARP + len(arp.Payload)
	switch arp.Opcode {
	case ARPRequest:
		return fmt.Sprintf("Request who-has %s tell %s, length %d", pkt.DstIP, pkt.SrcIP, length), FormatDelimiterNone
	case ARPReply:
		hw, _ := arp.SrcHw()
		return fmt.Sprintf("Reply %s is-at %s, length %d", pkt.SrcIP, hw, length), FormatDelimiterNone
	default:
		return fmt.Sprintf("unknown arp operation %d", arp.Opcode), FormatDelimiterNone
	}
}

// 172.17.0.1 > 172.17.0.10
// 172.17.0.1.80 > 172.17.0.10.35912
type LayerFormatterIPv4 struct{}

func (LayerFormatterIPv4) Kind() LayerKind { return LayerKindIPv4 }

func (LayerFormatterIPv4) Format(pkt *Packet, _ *formatOpts) (string, FormatDelimiter) {
	ip := &pkt.IPv4
	if pkt.L4Proto == unix.IPPROTO_TCP || pkt.L4Proto == unix.IPPROTO_UDP {
		// format in next layer with port
		return "", FormatDelimiterNone
	}
	if pkt.L4Proto == 0 {
		return fmt.Sprintf("%s > %s: %s, length %d", ip.SrcIP, ip.DstIP, IPProtocolName(ip.Protocol), pkt.segmentLen()), FormatDelimiterNone
	}
	return fmt.Sprintf("%s > %s", ip.SrcIP, ip.DstIP), FormatDelimiterColon
}

// ICMP echo request, id 62002, seq 3, length 64
// ICMP echo reply, id 62002, seq 3, length 64
type LayerFormatterICMP struct{}

func (LayerFormatterICMP) Kind() LayerKind { return LayerKindICMP }

func (LayerFormatterICMP) Format(pkt *Packet, _ *formatOpts) (string, FormatDelimiter) {
	icmp := &pkt.ICMP

	b := strings.Builder{}
	b.WriteString("ICMP ")
	b.WriteString(ICMPTypeName(icmp.Type))
	if icmp.Type == ICMPTypeEchoRequest || icmp.Type == ICMPTypeEchoReply {
		b.WriteString(fmt.Sprintf(", id %d, seq %d", icmp.ID, icmp.Seq))
	}
	b.WriteString(fmt.Sprintf(", length %d", pkt.segmentLen()))
	return b.String(), FormatDelimiterNone
}

// 172.17.0.2.10053 > 172.17.0.1.53: UDP, length 3
type LayerFormatterUDP struct{}

func (LayerFormatterUDP) Kind() LayerKind { return LayerKindUDP }

func (LayerFormatterUDP) Format(pkt *Packet, o *formatOpts) (string, FormatDelimiter) {
	udp := &pkt.UDP
	length := int(udp.Length) - SizeofUDP
	if length < 0 || length > len(udp.Payload) {
		length = len(udp.Payload)
	}
	return fmt.Sprintf("%s > %s: UDP, length %d",
		formatEndpoint(pkt.SrcIP.String(), udp.SrcPort, o), formatEndpoint(pkt.DstIP.String(), udp.DstPort, o), length), FormatDelimiterNone
}

// Flags [S], seq 1996870669, win 64240, options [mss 1460,sackOK,TS val 2991051445 ecr 0,nop,wscale 7], length 0
// Flags [S.], seq 1212244906, ack 1996870670, win 65160, options [mss 1460,sackOK,TS val 2190861178 ecr 2991051445,nop,wscale 7], length 0
// Flags [P.], seq 1:79, ack 1, win 510, options [nop,nop,TS val 2190861180 ecr 2991051445], length 78
// Flags [R], seq 3542344698, win 0, length 0
type LayerFormatterTCP struct{}

func (LayerFormatterTCP) Kind() LayerKind { return LayerKindTCP }

func (f LayerFormatterTCP) Format(pkt *Packet, o *formatOpts) (string, FormatDelimiter) {
	tcp := &pkt.TCP
	length := max(pkt.segmentLen()-int(pkt.L4Len), 0)

	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("%s > %s: ",
		formatEndpoint(pkt.SrcIP.String(), tcp.SrcPort, o), formatEndpoint(pkt.DstIP.String(), tcp.DstPort, o)))
	b.WriteString(fmt.Sprintf("Flags [%s]", tcp.Flags))

	switch {
	case tcp.Flags.Has(TCPFlagPSH):
		b.WriteString(fmt.Sprintf(", seq %d:%d", tcp.Seq, tcp.Seq+uint32(length)))
	case tcp.Flags.Has(TCPFlagSYN), tcp.Flags.Has(TCPFlagFIN), tcp.Flags.Has(TCPFlagRST):
		b.WriteString(fmt.Sprintf(", seq %d", tcp.Seq))
	}
	if tcp.Flags.Has(TCPFlagACK) {
		b.WriteString(fmt.Sprintf(", ack %d", tcp.AckSeq))
	}

	b.WriteString(fmt.Sprintf(", win %d", tcp.Window))
	if len(tcp.Options) > 0 {
		b.WriteString(fmt.Sprintf(", options [%s]", strings.Join(f.formatOptions(tcp.Options), ",")))
	}
	b.WriteString(fmt.Sprintf(", length %d", length))
	return b.String(), FormatDelimiterNone
}

func (LayerFormatterTCP) formatOptions(options []byte) []string {
	var result []string

	for i := 0; i < len(options); {
		kind := options[i]
		switch kind {
		case 0: // end of option list
			return result
		case 1:
			result = append(result, "nop")
			i++
			continue
		}

		if i+1 >= len(options) || options[i+1] < 2 || i+int(options[i+1]) > len(options) {
			return append(result, "bad opt")
		}
		data := options[i+2 : i+int(options[i+1])]
		i += int(options[i+1])

		switch {
		case kind == 2 && len(data) == 2:
			result = append(result, fmt.Sprintf("mss %d", binary.BigEndian.Uint16(data)))
		case kind == 3 && len(data) == 1:
			result = append(result, fmt.Sprintf("wscale %d", data[0]))
		case kind == 4:
			result = append(result, "sackOK")
		case kind == 8 && len(data) == 8:
			result = append(result, fmt.Sprintf("TS val %d ecr %d",
				binary.BigEndian.Uint32(data[:4]), binary.BigEndian.Uint32(data[4:8])))
		default:
			result = append(result, fmt.Sprintf("opt-%d", kind))
		}
	}
	return result
}

// segmentLen is the IPv4 payload length by the total length field, ignoring
// link layer padding.
func (pkt *Packet) segmentLen() int {
	n := int(pkt.IPv4.Len) - int(pkt.L3Len)
	if n < 0 || n > len(pkt.IPv4.Payload) {
		return len(pkt.IPv4.Payload)
	}
	return n
}

func formatEndpoint(ip string, port uint16, o *formatOpts) string {
	if o.portNames {
		return ip + "." + PortName(port)
	}
	return fmt.Sprintf("%s.%d", ip, port)
}

func FormatDumpTime(t time.Time) string {
	return t.Local().Format("15:04:05.000000")
}

func Format(data []byte, opts ...FormatOpt) string {
	return FormatWithTime(time.Now(), data, opts...)
}

// FormatWithTime renders data as one tcpdump like line stamped with ts.
// Layers that fail to decode end the line with the decode error.
func FormatWithTime(ts time.Time, data []byte, opts ...FormatOpt) string {
	var (
		o     formatOpts
		b     strings.Builder
		delim FormatDelimiter
	)
	for _, opt := range opts {
		opt(&o)
	}

	b.WriteString(FormatDumpTime(ts))
	b.WriteByte(' ')

	pkt := &Packet{}
	err := pkt.DecodeFromData(data)
	for _, kind := range pkt.Layers() {
		f, ok := GetLayerFormatter(kind)
		if !ok {
			continue
		}
		s, d := f.Format(pkt, &o)
		if s == "" {
			continue
		}
		b.WriteString(string(delim))
		b.WriteString(s)
		delim = d
	}
	if err != nil {
		if delim == FormatDelimiterNone && b.Len() > len(FormatDumpTime(ts))+1 {
			delim = FormatDelimiterComma
		}
		b.WriteString(string(delim))
		b.WriteString(fmt.Sprintf("[%s]", err))
	}
	return b.String()
}
