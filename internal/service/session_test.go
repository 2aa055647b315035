package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/netdev/internal/config"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture/capturetest"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
)

var testDir = nic.StaticDirectory{
	{
		Name:    "eth0",
		IP:      netaddr.MustParseIPv4Addr("10.0.0.1"),
		Netmask: netaddr.MustParseIPv4Addr("255.255.255.0"),
		HwAddr:  netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x01},
	},
	{Name: "lo", IP: netaddr.MustParseIPv4Addr("127.0.0.1")},
}

var testCaptureConfig = config.CaptureConfig{
	Snaplen:     1550,
	Timeout:     10 * time.Millisecond,
	MaxSessions: 2,
	DumpDir:     "/tmp/netdev",
	ReplayDir:   "/tmp/netdev/replay",
}

func testFrame(t *testing.T) []byte {
	udp := fastpkt.UDP{SrcPort: 1000, DstPort: 53, Payload: []byte("q")}
	udpData, err := udp.Build()
	require.NoError(t, err)
	ip := fastpkt.IPv4{TTL: 64, Protocol: fastpkt.IPProtocolUDP, SrcIP: netaddr.MustParseIPv4Addr("10.0.0.2"), DstIP: netaddr.MustParseIPv4Addr("10.0.0.1"), Payload: udpData}
	ipData, err := ip.Build()
	require.NoError(t, err)
	eth := fastpkt.EthernetII{Dst: testDir[0].HwAddr, Src: netaddr.HwAddr{0x02, 0, 0, 0, 0, 0x02}, Type: fastpkt.EtherTypeIPv4, Payload: ipData}
	frame, err := eth.Build()
	require.NoError(t, err)
	return frame
}

func TestSessionServiceLifecycle(t *testing.T) {
	b := capturetest.New()
	s := NewSessionService(b, testDir, testCaptureConfig)
	defer s.Close()

	info, err := s.CreateSession(&model.SessionSpec{NIC: "eth0", Filter: "udp", DumpFile: "../../etc/out.pcap"})
	require.NoError(t, err)
	assert.Equal(t, "eth0", info.Source)
	assert.Equal(t, "live", info.Mode)
	assert.Equal(t, "udp", info.Filter)
	assert.Equal(t, "/tmp/netdev/out.pcap", info.DumpFile)
	assert.False(t, info.Capturing)
	assert.True(t, info.HandleOpen)

	require.NoError(t, s.StartSession(info.ID))
	b.Deliver(testFrame(t), testFrame(t), testFrame(t))

	assert.Eventually(t, func() bool {
		got, err := s.QuerySession(info.ID)
		return err == nil && got.Queued == 3
	}, time.Second, 5*time.Millisecond)

	packets, err := s.PopPackets(info.ID, 2)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Contains(t, packets[0].Summary, "10.0.0.2.1000 > 10.0.0.1.53: UDP")
	assert.Equal(t, len(testFrame(t)), packets[0].CaptureLen)

	packets, err = s.PopPackets(info.ID, 10)
	require.NoError(t, err)
	assert.Len(t, packets, 1)

	require.NoError(t, s.StopSession(info.ID))
	got, err := s.QuerySession(info.ID)
	require.NoError(t, err)
	assert.False(t, got.Capturing)
	assert.Equal(t, uint64(3), got.Stats.RxPackets)

	require.NoError(t, s.DeleteSession(info.ID))
	_, err = s.QuerySession(info.ID)
	assert.True(t, errcode.Is(err, errcode.CodeNotExist))
	assert.True(t, errcode.Is(s.DeleteSession(info.ID), errcode.CodeNotExist))
}

func TestSessionServiceCreateInvalid(t *testing.T) {
	b := capturetest.New()
	b.Files = map[string][][]byte{"/tmp/netdev/replay/in.pcap": {}}
	s := NewSessionService(b, testDir, testCaptureConfig)
	defer s.Close()

	_, err := s.CreateSession(&model.SessionSpec{})
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))
	_, err = s.CreateSession(&model.SessionSpec{NIC: "eth0", File: "in.pcap"})
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))
	_, err = s.CreateSession(&model.SessionSpec{NIC: "wlan0"})
	assert.True(t, errcode.Is(err, errcode.CodeNotExist))
	_, err = s.CreateSession(&model.SessionSpec{File: "missing.pcap"})
	assert.True(t, errcode.Is(err, errcode.CodeSession))

	_, err = s.CreateSession(&model.SessionSpec{File: "in.pcap"})
	assert.NoError(t, err)
	_, err = s.CreateSession(&model.SessionSpec{NIC: "lo"})
	assert.NoError(t, err)
	_, err = s.CreateSession(&model.SessionSpec{NIC: "lo"})
	assert.True(t, errcode.Is(err, errcode.CodeInvalid))

	infos, total, err := s.QuerySessions(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, infos, 1)
	assert.Equal(t, "offline", infos[0].Mode)

	assert.Equal(t, 2, b.OpenHandles())
}

func TestSessionServiceReplayDir(t *testing.T) {
	b := capturetest.New()
	b.Files = map[string][][]byte{
		"/tmp/netdev/replay/in.pcap": {testFrame(t)},
		"/etc/passwd":                {testFrame(t)},
	}
	s := NewSessionService(b, testDir, testCaptureConfig)
	defer s.Close()

	info, err := s.CreateSession(&model.SessionSpec{File: "../../etc/in.pcap"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/netdev/replay/in.pcap", info.Source)

	// files outside the replay directory are never opened
	_, err = s.CreateSession(&model.SessionSpec{File: "/etc/passwd"})
	assert.True(t, errcode.Is(err, errcode.CodeSession))

	for _, file := range []string{"..", "/", "."} {
		_, err = s.CreateSession(&model.SessionSpec{File: file})
		assert.True(t, errcode.Is(err, errcode.CodeInvalid), file)
	}
	assert.Equal(t, 1, b.OpenHandles())
}

func TestSessionServiceOffline(t *testing.T) {
	b := capturetest.New()
	b.Files = map[string][][]byte{"/tmp/netdev/replay/in.pcap": {testFrame(t), testFrame(t)}}
	s := NewSessionService(b, testDir, testCaptureConfig)
	defer s.Close()

	info, err := s.CreateSession(&model.SessionSpec{File: "in.pcap"})
	require.NoError(t, err)
	require.NoError(t, s.StartSession(info.ID))

	assert.Eventually(t, func() bool {
		got, _ := s.QuerySession(info.ID)
		return !got.Capturing && got.Queued == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSessionServiceClose(t *testing.T) {
	b := capturetest.New()
	s := NewSessionService(b, testDir, testCaptureConfig)

	info, err := s.CreateSession(&model.SessionSpec{NIC: "eth0"})
	require.NoError(t, err)
	require.NoError(t, s.StartSession(info.ID))

	s.Close()
	assert.Equal(t, 0, b.OpenHandles())
	_, total, _ := s.QuerySessions(1, 10)
	assert.Equal(t, 0, total)
}

func TestNICService(t *testing.T) {
	b := capturetest.New()
	resolver := arp.NewResolver(b)
	resolver.Timeout = 50 * time.Millisecond
	resolver.Interval = 5 * time.Millisecond
	s := NewNICService(testDir, resolver)

	infos, err := s.QueryNICs()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, nic.Index(1), infos[1].Index)

	info, err := s.QueryNIC(0)
	require.NoError(t, err)
	assert.Equal(t, "eth0", info.Name)
	_, err = s.QueryNIC(9)
	assert.True(t, errcode.Is(err, errcode.CodeValidation))

	res, err := s.Resolve(context.Background(), "eth0", netaddr.MustParseIPv4Addr("10.0.0.9"))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "eth0", res.NIC)

	_, err = s.Resolve(context.Background(), "none", netaddr.MustParseIPv4Addr("10.0.0.9"))
	assert.True(t, errcode.Is(err, errcode.CodeNotExist))
}
