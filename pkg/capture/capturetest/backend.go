// Package capturetest provides an in-memory capture.Backend for tests.
package capturetest

import (
	"sync"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/pktqueue"
)

// Handle is an open in-memory capture descriptor.
type Handle struct {
	Source string
	Mode   capture.Mode
	Filter string

	pending [][]byte
	closed  bool
}

func (*Handle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (*Handle) SnapLen() int              { return capture.DefaultSnaplen }

type Dumper struct {
	name    string
	Packets []pktqueue.Packet
	Closed  bool
}

func (d *Dumper) Name() string { return d.name }

// Backend delivers frames to open handles instead of a NIC. Filters are
// recorded but not applied.
type Backend struct {
	// Responder, when set, answers every injected frame. Its frames are
	// delivered to all open handles.
	Responder func(pkt []byte) [][]byte
	// OpenErr fails every Open.
	OpenErr error
	// Files maps offline sources to their frames.
	Files map[string][][]byte

	mu       sync.Mutex
	handles  []*Handle
	dumpers  []*Dumper
	injected [][]byte
	opens    int
	closes   int
}

func New() *Backend { return &Backend{} }

func (b *Backend) Open(cfg capture.OpenConfig) (capture.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	h := &Handle{Source: cfg.Source, Mode: cfg.Mode}
	if cfg.Mode == capture.ModeOffline {
		frames, ok := b.Files[cfg.Source]
		if !ok {
			return nil, errcode.New(errcode.CodeSession, "%s: no such file", cfg.Source)
		}
		h.pending = append(h.pending, frames...)
	}
	b.opens++
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *Backend) Close(h capture.Handle, _ *capture.Filter, d capture.Dumper) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d != nil {
		d.(*Dumper).Closed = true
	}
	mh := h.(*Handle)
	if !mh.closed {
		mh.closed = true
		b.closes++
	}
}

func (b *Backend) InstallFilter(h capture.Handle, _ *capture.Filter, expr string, optimize bool, netmask netaddr.IPv4Addr) (*capture.Filter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h.(*Handle).Filter = expr
	return &capture.Filter{Expr: expr, Optimize: optimize, Netmask: netmask}, nil
}

func (b *Backend) CaptureOne(h capture.Handle, q *pktqueue.Queue) (capture.Result, error) {
	mh := h.(*Handle)

	b.mu.Lock()
	if mh.closed {
		b.mu.Unlock()
		return capture.ResultBadHandle, errcode.New(errcode.CodeSession, "handle closed")
	}
	if len(mh.pending) > 0 {
		pkt := mh.pending[0]
		mh.pending = mh.pending[1:]
		b.mu.Unlock()
		q.Push(pktqueue.Packet{Timestamp: time.Now(), Length: len(pkt), Data: pkt})
		return capture.ResultPacket, nil
	}
	b.mu.Unlock()

	if mh.Mode == capture.ModeOffline {
		return capture.ResultEOF, nil
	}
	time.Sleep(time.Millisecond)
	return capture.ResultTimeout, nil
}

func (b *Backend) DumpOpen(h capture.Handle, name string) (capture.Dumper, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := &Dumper{name: name}
	b.dumpers = append(b.dumpers, d)
	return d, nil
}

func (b *Backend) DumpWrite(d capture.Dumper, pkt pktqueue.Packet) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	md := d.(*Dumper)
	md.Packets = append(md.Packets, pkt)
	return nil
}

func (b *Backend) DumpClose(d capture.Dumper) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.(*Dumper).Closed = true
	return nil
}

func (b *Backend) Inject(h capture.Handle, pkt []byte) error {
	b.mu.Lock()
	if h.(*Handle).closed {
		b.mu.Unlock()
		return errcode.New(errcode.CodeSession, "handle closed")
	}
	b.injected = append(b.injected, append([]byte(nil), pkt...))
	responder := b.Responder
	b.mu.Unlock()

	if responder != nil {
		b.Deliver(responder(pkt)...)
	}
	return nil
}

// Deliver queues frames on every open live handle.
func (b *Backend) Deliver(frames ...[]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handles {
		if !h.closed && h.Mode == capture.ModeLive {
			h.pending = append(h.pending, frames...)
		}
	}
}

// Injected returns copies of all injected frames in order.
func (b *Backend) Injected() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.injected...)
}

// Counts returns how many handles were opened and closed.
func (b *Backend) Counts() (opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.closes
}

// OpenHandles is the number of handles not closed yet.
func (b *Backend) OpenHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens - b.closes
}

func (b *Backend) Dumpers() []*Dumper {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Dumper(nil), b.dumpers...)
}

// Filters lists the filter of every handle ever opened.
func (b *Backend) Filters() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	filters := make([]string, 0, len(b.handles))
	for _, h := range b.handles {
		filters = append(filters, h.Filter)
	}
	return filters
}
