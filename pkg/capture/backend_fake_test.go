package capture

import (
	"sync"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/pktqueue"
)

type fakeHandle struct {
	id     int
	closed bool
}

func (*fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (*fakeHandle) SnapLen() int              { return DefaultSnaplen }

type fakeDumper struct {
	name    string
	packets []pktqueue.Packet
	closed  bool
}

func (d *fakeDumper) Name() string { return d.name }

type fakeStep struct {
	res Result
	pkt []byte
	err error
}

// fakeBackend replays scripted capture results. With gate set, every
// CaptureOne call announces itself on entered and waits for a release.
// capturetest.Backend imports this package and cannot script results, so
// the session tests use this one.
type fakeBackend struct {
	mu       sync.Mutex
	opens    int
	closes   int
	handles  []*fakeHandle
	dumpers  []*fakeDumper
	injected [][]byte
	openErr  error
	script   []fakeStep

	gate    chan struct{}
	entered chan struct{}
}

func newFakeBackend(steps ...fakeStep) *fakeBackend {
	return &fakeBackend{script: steps}
}

func (b *fakeBackend) gated() *fakeBackend {
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 16)
	return b
}

func (b *fakeBackend) release() { b.gate <- struct{}{} }

func (b *fakeBackend) counts() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.closes
}

func (b *fakeBackend) Open(cfg OpenConfig) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opens++
	h := &fakeHandle{id: b.opens}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) Close(h Handle, _ *Filter, d Dumper) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	h.(*fakeHandle).closed = true
	if d != nil {
		d.(*fakeDumper).closed = true
	}
}

func (b *fakeBackend) InstallFilter(h Handle, _ *Filter, expr string, optimize bool, netmask netaddr.IPv4Addr) (*Filter, error) {
	if expr == "bad filter" {
		return nil, errcode.New(errcode.CodeSession, "syntax error")
	}
	return &Filter{Expr: expr, Optimize: optimize, Netmask: netmask}, nil
}

func (b *fakeBackend) CaptureOne(h Handle, q *pktqueue.Queue) (Result, error) {
	if b.gate != nil {
		b.entered <- struct{}{}
		<-b.gate
	}

	b.mu.Lock()
	if h.(*fakeHandle).closed {
		b.mu.Unlock()
		return ResultBadHandle, nil
	}
	if len(b.script) == 0 {
		b.mu.Unlock()
		time.Sleep(time.Millisecond)
		return ResultTimeout, nil
	}
	step := b.script[0]
	b.script = b.script[1:]
	b.mu.Unlock()

	if step.res == ResultPacket {
		q.Push(pktqueue.Packet{Timestamp: time.Now(), Length: len(step.pkt), Data: step.pkt})
	}
	return step.res, step.err
}

func (b *fakeBackend) DumpOpen(h Handle, name string) (Dumper, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := &fakeDumper{name: name}
	b.dumpers = append(b.dumpers, d)
	return d, nil
}

func (b *fakeBackend) DumpWrite(d Dumper, pkt pktqueue.Packet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fd := d.(*fakeDumper)
	fd.packets = append(fd.packets, pkt)
	return nil
}

func (b *fakeBackend) DumpClose(d Dumper) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.(*fakeDumper).closed = true
	return nil
}

func (b *fakeBackend) Inject(h Handle, pkt []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.injected = append(b.injected, pkt)
	return nil
}

func (b *fakeBackend) packet(data []byte) pktqueue.Packet {
	return pktqueue.Packet{Timestamp: time.Now(), Length: len(data), Data: data}
}
