package covert

import (
	"context"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture/capturetest"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
)

var (
	srcHw = netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x0a}
	dstHw = netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x0b}
	srcIP = netaddr.MustParseIPv4Addr("172.16.0.10")
	dstIP = netaddr.MustParseIPv4Addr("172.16.0.11")
)

func testMessage(mode Mode) *Message {
	return &Message{
		Mode:    mode,
		SrcIP:   srcIP,
		DstIP:   dstIP,
		SrcPort: DefaultSrcPort,
		DstPort: 9999,
		Overt:   []byte(DefaultOvert),
		Covert:  []byte("attack at dawn"),
	}
}

func TestIPExtra(t *testing.T) {
	m := testMessage(ModeIPExtra)
	frame, err := BuildFrame(m, srcHw, dstHw)
	require.NoError(t, err)

	var ip fastpkt.IPv4
	require.NoError(t, ip.Parse(frame, fastpkt.SizeofEthernet))
	assert.Equal(t, uint16(fastpkt.SizeofIPv4+fastpkt.SizeofUDP+len(DefaultOvert)), ip.Len)
	assert.Equal(t, uint8(DefaultTTL), ip.TTL)
	assert.True(t, fastpkt.VerifyIPv4Checksum(frame, fastpkt.SizeofEthernet))

	// The extra bytes survive parsing past the declared length
	assert.Len(t, ip.Payload, fastpkt.SizeofUDP+len(DefaultOvert)+len(m.Covert))

	overt, hidden, err := Extract(frame, ModeIPExtra)
	require.NoError(t, err)
	assert.Equal(t, m.Overt, overt)
	assert.Equal(t, m.Covert, hidden)

	// A regular stack sees an ordinary udp datagram
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	assert.Equal(t, layers.UDPPort(DefaultSrcPort), udp.SrcPort)
	assert.Equal(t, []byte(DefaultOvert), udp.Payload)
}

func TestUDPExtra(t *testing.T) {
	m := testMessage(ModeUDPExtra)
	frame, err := BuildFrame(m, srcHw, dstHw)
	require.NoError(t, err)

	var ip fastpkt.IPv4
	require.NoError(t, ip.Parse(frame, fastpkt.SizeofEthernet))
	assert.Equal(t, uint16(fastpkt.SizeofIPv4+fastpkt.SizeofUDP+len(DefaultOvert)+len(m.Covert)), ip.Len)

	var udp fastpkt.UDP
	require.NoError(t, udp.Parse(ip.Payload, 0))
	assert.Equal(t, uint16(fastpkt.SizeofUDP+len(DefaultOvert)), udp.Length)

	// Checksum covers the udp datagram only
	segment := ip.Payload[:udp.Length]
	assert.Equal(t, uint16(0), fastpkt.TransportChecksum(fastpkt.IPProtocolUDP, srcIP, dstIP, segment))

	overt, hidden, err := Extract(frame, ModeUDPExtra)
	require.NoError(t, err)
	assert.Equal(t, m.Overt, overt)
	assert.Equal(t, m.Covert, hidden)
}

func TestExtractInvalid(t *testing.T) {
	_, _, err := Extract(make([]byte, 10), ModeIPExtra)
	assert.True(t, errcode.Is(err, errcode.CodeParse))

	frame, err := BuildFrame(testMessage(ModeIPExtra), srcHw, dstHw)
	require.NoError(t, err)
	_, _, err = Extract(frame, Mode(7))
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))

	_, err = BuildDatagram(&Message{Mode: Mode(7)})
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeIPExtra, ModeUDPExtra} {
		parsed, err := ParseMode(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("tcp")
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestSend(t *testing.T) {
	b := capturetest.New()
	b.Responder = func(data []byte) [][]byte {
		pkt, err := fastpkt.NewPacket(data)
		if err != nil || pkt.L3Proto != uint16(fastpkt.EtherTypeARP) || pkt.ARP.Opcode != fastpkt.ARPRequest {
			return nil
		}
		reply := fastpkt.NewARPRequest(dstHw, dstIP, srcIP)
		reply.Opcode = fastpkt.ARPReply
		arpData, _ := reply.Build()
		eth := fastpkt.EthernetII{Dst: srcHw, Src: dstHw, Type: fastpkt.EtherTypeARP, Payload: arpData}
		frame, _ := eth.Build()
		return [][]byte{frame}
	}

	n, err := nic.New(nic.StaticDirectory{{
		Name:    "eth0",
		IP:      srcIP,
		Netmask: netaddr.MustParseIPv4Addr("255.255.0.0"),
		HwAddr:  srcHw,
	}}, 0)
	require.NoError(t, err)

	resolver := arp.NewResolver(b)
	resolver.Interval = 5 * time.Millisecond
	s := NewSender(b, resolver, WithRepeat(3), WithRate(1000))

	frame, err := s.Send(context.Background(), n, Message{Mode: ModeUDPExtra, DstIP: dstIP, DstPort: 53, Covert: []byte("x")})
	require.NoError(t, err)

	injected := b.Injected()
	require.Len(t, injected, 1+3)
	for _, f := range injected[1:] {
		assert.Equal(t, frame, f)
	}

	pkt, err := fastpkt.NewPacket(frame)
	require.NoError(t, err)
	assert.Equal(t, dstHw, pkt.DstMAC)
	assert.Equal(t, srcIP, pkt.SrcIP)
	assert.Equal(t, uint16(DefaultSrcPort), pkt.SrcPort)
	assert.Equal(t, uint16(53), pkt.DstPort)

	overt, hidden, err := Extract(frame, ModeUDPExtra)
	require.NoError(t, err)
	assert.Equal(t, DefaultOvert, string(overt))
	assert.Equal(t, "x", string(hidden))
	assert.Equal(t, 0, b.OpenHandles())
}
