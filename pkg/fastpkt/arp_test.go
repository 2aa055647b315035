package fastpkt

import (
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

func TestARPRequestMatchesGoPacket(t *testing.T) {
	srcHw := netaddr.HwAddr(testLayerEth.SrcMAC)
	srcIP := netaddr.MustParseIPv4Addr("172.16.23.2")
	target := netaddr.MustParseIPv4Addr("172.16.23.1")

	layerARP := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcHw.ToBytes(),
		SourceProtAddress: srcIP.ToBytes(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    target.ToBytes(),
	}
	want, err := serialize(&layerARP)
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewARPRequest(srcHw, srcIP, target).Build()
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, want, got)

	var arp ARP
	if !assert.NoError(t, arp.Parse(want, 0)) {
		return
	}
	ip, err := arp.SrcIP()
	assert.NoError(t, err)
	assert.Equal(t, srcIP, ip)
	ip, err = arp.TargetIP()
	assert.NoError(t, err)
	assert.Equal(t, target, ip)
	hw, err := arp.SrcHw()
	assert.NoError(t, err)
	assert.Equal(t, srcHw, hw)
}

func TestARPRoundTrip(t *testing.T) {
	arp := ARP{
		HwType:         ARPHwTypeEthernet,
		ProtType:       EtherTypeIPv4,
		HwLen:          6,
		ProtLen:        4,
		Opcode:         ARPReply,
		SrcHwAddr:      []byte{2, 66, 109, 9, 5, 196},
		SrcProtAddr:    []byte{172, 17, 0, 1},
		TargetHwAddr:   []byte{2, 66, 172, 17, 0, 10},
		TargetProtAddr: []byte{172, 17, 0, 10},
		Payload:        []byte{},
	}
	b, err := arp.Build()
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, b, SizeofARP)

	var parsed ARP
	if !assert.NoError(t, parsed.Parse(b, 0)) {
		return
	}
	assert.Equal(t, arp, parsed)
}

func TestARPShortAddrs(t *testing.T) {
	arp := ARP{HwLen: 6, ProtLen: 4, Opcode: ARPRequest, SrcHwAddr: []byte{1, 2}, SrcProtAddr: []byte{10}}
	b, err := arp.Build()
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, b, SizeofARP)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0}, b[8:14])
	assert.Equal(t, []byte{10, 0, 0, 0}, b[14:18])
	assert.Equal(t, make([]byte, 10), b[18:28])

	arp.SrcHwAddr = make([]byte, 7)
	_, err = arp.Build()
	assert.True(t, errcode.Is(err, errcode.CodeValidation))

	arp.SrcHwAddr = nil
	arp.TargetProtAddr = make([]byte, 5)
	_, err = arp.Build()
	assert.True(t, errcode.Is(err, errcode.CodeValidation))
}

func TestARPParseClampsLengths(t *testing.T) {
	b := make([]byte, SizeofARP)
	b[4], b[5] = 16, 16
	for i := 8; i < SizeofARP; i++ {
		b[i] = byte(i)
	}

	var arp ARP
	if !assert.NoError(t, arp.Parse(b, 0)) {
		return
	}
	assert.Equal(t, uint8(16), arp.HwLen)
	assert.Equal(t, uint8(16), arp.ProtLen)
	assert.Equal(t, []byte{8, 9, 10, 11, 12, 13}, arp.SrcHwAddr)
	assert.Equal(t, []byte{14, 15, 16, 17}, arp.SrcProtAddr)
	assert.Equal(t, []byte{18, 19, 20, 21, 22, 23}, arp.TargetHwAddr)
	assert.Equal(t, []byte{24, 25, 26, 27}, arp.TargetProtAddr)

	b[4], b[5] = 2, 1
	if !assert.NoError(t, arp.Parse(b, 0)) {
		return
	}
	assert.Equal(t, []byte{8, 9}, arp.SrcHwAddr)
	assert.Equal(t, []byte{14}, arp.SrcProtAddr)
	assert.Equal(t, []byte{18, 19}, arp.TargetHwAddr)
	assert.Equal(t, []byte{24}, arp.TargetProtAddr)

	// Parsed addresses do not alias the buffer
	b[8] = 0xff
	assert.Equal(t, byte(8), arp.SrcHwAddr[0])
}

func TestARPParseInvalid(t *testing.T) {
	var arp ARP
	err := arp.Parse(make([]byte, SizeofARP-1), 0)
	assert.True(t, errcode.Is(err, errcode.CodeParse))
	assert.ErrorIs(t, err, ErrPacketTooShort)
}
