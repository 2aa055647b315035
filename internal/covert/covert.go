// Package covert hides data in the bytes a receiver's stack ignores: past
// the IPv4 total length, or past the UDP length inside the IP payload.
package covert

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
	"golang.org/x/time/rate"
)

const (
	DefaultSrcPort = 34
	DefaultOvert   = "Mary Had a Little Lamb"
	DefaultTTL     = 255
)

type Mode int

const (
	// ModeIPExtra appends the covert bytes after the IPv4 datagram.
	ModeIPExtra Mode = iota
	// ModeUDPExtra appends them after the UDP datagram, inside the IPv4
	// payload, so only the UDP length excludes them.
	ModeUDPExtra
)

var modeStr = map[Mode]string{
	ModeIPExtra:  "ip",
	ModeUDPExtra: "udp",
}

func (m Mode) String() string {
	s, ok := modeStr[m]
	if !ok {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return s
}

func ParseMode(s string) (Mode, error) {
	for m, str := range modeStr {
		if str == s {
			return m, nil
		}
	}
	return 0, errcode.New(errcode.CodeInvalid, "invalid covert mode %q", s)
}

type Message struct {
	Mode    Mode
	SrcIP   netaddr.IPv4Addr
	DstIP   netaddr.IPv4Addr
	SrcPort uint16
	DstPort uint16
	Overt   []byte
	Covert  []byte
}

// BuildDatagram builds the IPv4 datagram carrying m.Overt over UDP with
// m.Covert hidden according to m.Mode.
func BuildDatagram(m *Message) ([]byte, error) {
	udp := fastpkt.UDP{
		SrcPort: m.SrcPort,
		DstPort: m.DstPort,
		Payload: m.Overt,
		SrcIP:   m.SrcIP,
		DstIP:   m.DstIP,
	}
	udpData, err := udp.Build()
	if err != nil {
		return nil, err
	}

	ip := fastpkt.IPv4{
		Version:  fastpkt.IPv4Version,
		TTL:      DefaultTTL,
		Protocol: fastpkt.IPProtocolUDP,
		SrcIP:    m.SrcIP,
		DstIP:    m.DstIP,
	}

	switch m.Mode {
	case ModeIPExtra:
		ip.Payload = udpData
		ipData, err := ip.Build()
		if err != nil {
			return nil, err
		}
		return append(ipData, m.Covert...), nil
	case ModeUDPExtra:
		ip.Payload = append(udpData, m.Covert...)
		return ip.Build()
	default:
		return nil, errcode.New(errcode.CodeInvalid, "invalid covert mode %d", m.Mode)
	}
}

// BuildFrame wraps BuildDatagram in Ethernet II.
func BuildFrame(m *Message, srcHw, dstHw netaddr.HwAddr) ([]byte, error) {
	datagram, err := BuildDatagram(m)
	if err != nil {
		return nil, err
	}
	eth := fastpkt.EthernetII{Dst: dstHw, Src: srcHw, Type: fastpkt.EtherTypeIPv4, Payload: datagram}
	return eth.Build()
}

// Extract recovers the hidden bytes of a frame built by BuildFrame. The
// overt UDP payload is returned too.
func Extract(frame []byte, mode Mode) (overt, hidden []byte, err error) {
	var eth fastpkt.EthernetII
	if err := eth.Parse(frame, 0); err != nil {
		return nil, nil, err
	}
	var ip fastpkt.IPv4
	if err := ip.Parse(eth.Payload, 0); err != nil {
		return nil, nil, err
	}
	if ip.Protocol != fastpkt.IPProtocolUDP {
		return nil, nil, errcode.New(errcode.CodeParse, "covert: ip protocol %d is not udp", ip.Protocol)
	}

	declared := int(ip.Len) - ip.HeaderLen()
	if declared < 0 || declared > len(ip.Payload) {
		return nil, nil, errcode.New(errcode.CodeParse, "covert: ip total length %d out of range", ip.Len)
	}

	var udp fastpkt.UDP
	if err := udp.Parse(ip.Payload, 0); err != nil {
		return nil, nil, err
	}
	udpLen := int(udp.Length)
	if udpLen < fastpkt.SizeofUDP || udpLen > len(ip.Payload) {
		return nil, nil, errcode.New(errcode.CodeParse, "covert: udp length %d out of range", udp.Length)
	}
	overt = ip.Payload[fastpkt.SizeofUDP:udpLen]

	switch mode {
	case ModeIPExtra:
		return overt, ip.Payload[declared:], nil
	case ModeUDPExtra:
		return overt, ip.Payload[udpLen:declared], nil
	default:
		return nil, nil, errcode.New(errcode.CodeInvalid, "invalid covert mode %d", mode)
	}
}

type senderOpts struct {
	repeat int
	rate   rate.Limit
}

type SenderOpt func(*senderOpts)

// WithRepeat sends each message n times.
func WithRepeat(n int) SenderOpt {
	return func(o *senderOpts) { o.repeat = max(n, 1) }
}

// WithRate limits sending to pps frames per second.
func WithRate(pps float64) SenderOpt {
	return func(o *senderOpts) { o.rate = rate.Limit(pps) }
}

type Sender struct {
	backend  capture.Backend
	resolver *arp.Resolver
	opts     senderOpts
}

func NewSender(b capture.Backend, resolver *arp.Resolver, opts ...SenderOpt) *Sender {
	o := senderOpts{repeat: 1, rate: rate.Inf}
	for _, opt := range opts {
		opt(&o)
	}
	if resolver == nil {
		resolver = arp.NewResolver(b)
	}
	return &Sender{backend: b, resolver: resolver, opts: o}
}

// Send resolves m.DstIP through n, then injects the covert frame. Zero
// SrcIP and SrcPort default to n's address and DefaultSrcPort.
func (s *Sender) Send(ctx context.Context, n *nic.NIC, m Message) ([]byte, error) {
	if m.SrcIP.IsZero() {
		m.SrcIP = n.IP()
	}
	if m.SrcPort == 0 {
		m.SrcPort = DefaultSrcPort
	}
	if m.Overt == nil {
		m.Overt = []byte(DefaultOvert)
	}

	dstHw, found, err := s.resolver.Resolve(ctx, n, m.DstIP)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errcode.New(errcode.CodeResolution, "cannot resolve %s to a hardware address", m.DstIP)
	}

	frame, err := BuildFrame(&m, n.HwAddr(), dstHw)
	if err != nil {
		return nil, err
	}

	if !n.Opened() {
		if err := n.Open(s.backend); err != nil {
			return nil, err
		}
		defer n.Close()
	}

	limiter := rate.NewLimiter(s.opts.rate, 1)
	for i := 0; i < s.opts.repeat; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return frame, err
		}
		if err := n.Inject(frame); err != nil {
			return frame, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"nic":    n.Name(),
		"mode":   m.Mode,
		"dst":    m.DstIP,
		"port":   m.DstPort,
		"len":    len(frame),
		"hidden": len(m.Covert),
		"repeat": s.opts.repeat,
	}).Debug("Sent covert frame")
	return frame, nil
}
