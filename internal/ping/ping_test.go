package ping

import (
	"context"
	"testing"
	"time"

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
	myHw     = netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x01}
	peerHw   = netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x02}
	myIP     = netaddr.MustParseIPv4Addr("10.1.1.2")
	peerIP   = netaddr.MustParseIPv4Addr("10.1.1.3")
	absentIP = netaddr.MustParseIPv4Addr("10.1.1.4")
)

func newTestNIC(t *testing.T) *nic.NIC {
	n, err := nic.New(nic.StaticDirectory{{
		Name:    "eth1",
		IP:      myIP,
		Netmask: netaddr.MustParseIPv4Addr("255.255.255.0"),
		HwAddr:  myHw,
	}}, 0)
	require.NoError(t, err)
	return n
}

// peer answers arp for peerIP and echo requests to it, dropping the
// echo replies for seqs in drop.
func peer(t *testing.T, drop map[uint16]bool) func([]byte) [][]byte {
	return func(data []byte) [][]byte {
		pkt, err := fastpkt.NewPacket(data)
		if err != nil {
			return nil
		}

		switch {
		case pkt.L3Proto == uint16(fastpkt.EtherTypeARP) && pkt.DstIP == peerIP:
			reply := fastpkt.NewARPRequest(peerHw, peerIP, myIP)
			reply.Opcode = fastpkt.ARPReply
			arpData, err := reply.Build()
			require.NoError(t, err)
			eth := fastpkt.EthernetII{Dst: myHw, Src: peerHw, Type: fastpkt.EtherTypeARP, Payload: arpData}
			frame, err := eth.Build()
			require.NoError(t, err)
			return [][]byte{frame}

		case pkt.L4Proto == uint16(fastpkt.IPProtocolICMP) && pkt.ICMP.Type == fastpkt.ICMPTypeEchoRequest:
			if drop[pkt.ICMP.Seq] {
				return nil
			}
			icmp := fastpkt.ICMP{Type: fastpkt.ICMPTypeEchoReply, ID: pkt.ICMP.ID, Seq: pkt.ICMP.Seq, Payload: pkt.ICMP.Payload}
			icmpData, err := icmp.Build()
			require.NoError(t, err)
			ip := fastpkt.IPv4{TTL: 64, Protocol: fastpkt.IPProtocolICMP, SrcIP: peerIP, DstIP: myIP, Payload: icmpData}
			ipData, err := ip.Build()
			require.NoError(t, err)
			eth := fastpkt.EthernetII{Dst: myHw, Src: peerHw, Type: fastpkt.EtherTypeIPv4, Payload: ipData}
			frame, err := eth.Build()
			require.NoError(t, err)

			// a reply with another id goes first
			other := icmp
			other.ID++
			otherData, _ := other.Build()
			ip.Payload = otherData
			otherIP, _ := ip.Build()
			eth.Payload = otherIP
			otherFrame, _ := eth.Build()
			return [][]byte{otherFrame, frame}
		}
		return nil
	}
}

func newTestPinger(b *capturetest.Backend, opts ...PingOpt) *Pinger {
	resolver := arp.NewResolver(b)
	resolver.Timeout = 200 * time.Millisecond
	resolver.Interval = 5 * time.Millisecond

	opts = append([]PingOpt{
		WithInterval(time.Millisecond),
		WithTimeout(200 * time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
		WithID(77),
	}, opts...)
	return New(b, resolver, opts...)
}

func TestEchoFrame(t *testing.T) {
	frame, err := NewEchoFrame(myHw, peerHw, myIP, peerIP, DefaultTTL, 7, 3)
	require.NoError(t, err)

	pkt, err := fastpkt.NewPacket(frame)
	require.NoError(t, err)
	assert.Equal(t, peerHw, pkt.DstMAC)
	assert.Equal(t, uint8(255), pkt.IPv4.TTL)
	assert.Equal(t, fastpkt.IPProtocolICMP, pkt.IPv4.Protocol)
	assert.True(t, fastpkt.VerifyIPv4Checksum(frame, fastpkt.SizeofEthernet))
	assert.Equal(t, fastpkt.ICMPTypeEchoRequest, pkt.ICMP.Type)
	assert.Equal(t, uint16(7), pkt.ICMP.ID)
	assert.Equal(t, uint16(3), pkt.ICMP.Seq)
	assert.Equal(t, EchoPayload, pkt.ICMP.Payload)

	icmpData := frame[fastpkt.SizeofEthernet+fastpkt.SizeofIPv4:]
	assert.Equal(t, uint16(0), fastpkt.InternetChecksum(icmpData, len(icmpData)))
}

func TestMatchReply(t *testing.T) {
	icmp := fastpkt.ICMP{Type: fastpkt.ICMPTypeEchoReply, ID: 1, Seq: 2}
	icmpData, _ := icmp.Build()
	ip := fastpkt.IPv4{TTL: 64, Protocol: fastpkt.IPProtocolICMP, SrcIP: peerIP, DstIP: myIP, Payload: icmpData}
	ipData, _ := ip.Build()
	eth := fastpkt.EthernetII{Dst: myHw, Src: peerHw, Type: fastpkt.EtherTypeIPv4, Payload: ipData}
	frame, _ := eth.Build()

	assert.True(t, MatchReply(frame, myIP, 1, 2))
	assert.False(t, MatchReply(frame, myIP, 1, 3))
	assert.False(t, MatchReply(frame, myIP, 9, 2))
	assert.False(t, MatchReply(frame, peerIP, 1, 2))
	assert.False(t, MatchReply(frame[:20], myIP, 1, 2))

	request, _ := NewEchoFrame(peerHw, myHw, peerIP, myIP, 64, 1, 2)
	assert.False(t, MatchReply(request, myIP, 1, 2))
}

func TestPingRun(t *testing.T) {
	b := capturetest.New()
	b.Responder = peer(t, map[uint16]bool{2: true})

	n := newTestNIC(t)
	var seen []Result
	results, err := newTestPinger(b).Run(context.Background(), n, peerIP, func(r Result) { seen = append(seen, r) })
	require.NoError(t, err)
	require.Len(t, results, DefaultCount)
	assert.Equal(t, results, seen)

	for i, r := range results {
		assert.Equal(t, uint16(i), r.Seq)
		assert.Equal(t, peerIP, r.Target)
		assert.Equal(t, i != 2, r.Received, "seq %d", i)
	}

	// one arp request, then one echo request per seq
	injected := b.Injected()
	require.Len(t, injected, 1+DefaultCount)
	for i, frame := range injected[1:] {
		pkt, err := fastpkt.NewPacket(frame)
		require.NoError(t, err)
		assert.Equal(t, peerHw, pkt.DstMAC)
		assert.Equal(t, uint16(77), pkt.ICMP.ID)
		assert.Equal(t, uint16(i), pkt.ICMP.Seq)
	}
	assert.Contains(t, b.Filters(), ReplyFilter)
	assert.Equal(t, 0, b.OpenHandles())
	assert.False(t, n.Opened())
}

func TestPingUnresolved(t *testing.T) {
	b := capturetest.New()
	b.Responder = peer(t, nil)

	results, err := newTestPinger(b, WithCount(1)).Run(context.Background(), newTestNIC(t), absentIP, nil)
	assert.True(t, errcode.Is(err, errcode.CodeResolution))
	assert.Empty(t, results)
	assert.Equal(t, 0, b.OpenHandles())
}

func TestPingCanceled(t *testing.T) {
	b := capturetest.New()
	b.Responder = peer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPinger(b, WithCount(10), WithInterval(time.Hour))
	results, err := p.Run(ctx, newTestNIC(t), peerIP, func(Result) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
}
