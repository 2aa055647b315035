package bench

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/netdev/pkg/netaddr"
)

type countInjector struct {
	n    atomic.Int64
	fail bool
}

func (*countInjector) Name() string { return "eth0" }

func (c *countInjector) Inject([]byte) error {
	c.n.Add(1)
	if c.fail {
		return errors.New("inject failed")
	}
	return nil
}

var (
	testEther = LayerEthernet{SrcMAC: netaddr.HwAddr{0x02, 0, 0, 0, 0, 1}, DstMAC: netaddr.HwAddr{0x02, 0, 0, 0, 0, 2}}
	testIPv4  = LayerIPv4{SrcIPv4: netaddr.MustParseIPv4Addr("10.0.0.1"), DstIPv4: netaddr.MustParseIPv4Addr("10.0.0.2"), TTL: 97}
)

func TestMakePacketData(t *testing.T) {
	tcp := LayerTCP{LayerPorts: LayerPorts{DPort: 80}, SYN: true, Payload: "hello"}
	data, err := MakePacketData(&testEther, &testIPv4, WithLayerTCP(&tcp))
	require.NoError(t, err)

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(97), ip.TTL)
	assert.Equal(t, "10.0.0.2", ip.DstIP.String())
	l4 := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.True(t, l4.SYN)
	assert.Equal(t, layers.TCPPort(80), l4.DstPort)
	assert.Equal(t, layers.TCPPort(54321), l4.SrcPort)
	assert.Equal(t, []byte("hello"), l4.Payload)

	udp := LayerUDP{Payload: string(bytes.Repeat([]byte{'x'}, 2000))}
	data, err = MakePacketData(&testEther, &testIPv4, WithLayerUDP(&udp), WithLayerMTU(1500))
	require.NoError(t, err)
	pkt = gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	assert.Len(t, pkt.Layer(layers.LayerTypeUDP).(*layers.UDP).Payload, maxPayload)

	icmp := LayerICMP{ID: 7}
	data, err = MakePacketData(&testEther, &testIPv4, WithLayerICMP(&icmp))
	require.NoError(t, err)
	pkt = gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	echo := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint16(7), echo.Id)
	assert.Equal(t, uint16(12345), echo.Seq)

	_, err = MakePacketData(&testEther, &testIPv4)
	assert.Error(t, err)
	_, err = MakePacketData(&testEther, &LayerIPv4{}, WithLayerICMP(&icmp))
	assert.Error(t, err)
}

func TestBenchmarkTotal(t *testing.T) {
	inj := &countInjector{}
	txList := []Tx{NewInjectTx(inj), NewInjectTx(inj), NewInjectTx(inj)}

	var out bytes.Buffer
	stats, err := Benchmark(context.Background(), txList, []byte{1, 2, 3, 4},
		WithBenchmarkN(10),
		WithBenchmarkStatsDur(time.Hour),
		WithBenchmarkOutput(&out),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(10), inj.n.Load())
	require.Len(t, stats, 3)
	assert.Equal(t, uint64(4), stats[0].TxPackets)
	assert.Equal(t, uint64(3), stats[2].TxPackets)
	assert.Equal(t, uint64(16), stats[0].TxBytes)
	assert.Contains(t, out.String(), "SUM")
}

func TestBenchmarkErrors(t *testing.T) {
	inj := &countInjector{fail: true}
	stats, err := Benchmark(context.Background(), []Tx{NewInjectTx(inj)}, []byte{1}, WithBenchmarkN(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats[0].TxPackets)
	assert.Equal(t, uint64(3), stats[0].TxErrors)
	assert.Equal(t, uint64(3), stats[0].TxIOs)

	_, err = Benchmark(context.Background(), nil, []byte{1})
	assert.Error(t, err)
}

func TestBenchmarkCancel(t *testing.T) {
	inj := &countInjector{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	stats, err := Benchmark(ctx, []Tx{NewInjectTx(inj)}, []byte{1}, WithBenchmarkRateLimit(100))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.LessOrEqual(t, stats[0].TxPackets, uint64(10))
}
