package capture

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/netutil"
	"github.com/zxhio/netdev/pkg/pktqueue"
)

const (
	DefaultSnaplen = 1550
	DefaultTimeout = 100 * time.Millisecond
)

var (
	idMu   sync.Mutex
	nextID uint64
)

func newSessionID() uint64 {
	idMu.Lock()
	defer idMu.Unlock()
	nextID++
	return nextID
}

type sessionOpts struct {
	snaplen  int
	promisc  bool
	timeout  time.Duration
	autoDump bool
}

type SessionOpt func(*sessionOpts)

func WithSnaplen(n int) SessionOpt {
	return func(o *sessionOpts) { o.snaplen = n }
}

func WithPromisc(promisc bool) SessionOpt {
	return func(o *sessionOpts) { o.promisc = promisc }
}

func WithTimeout(d time.Duration) SessionOpt {
	return func(o *sessionOpts) { o.timeout = d }
}

// WithAutoDump tees every captured packet into the open dump file.
func WithAutoDump() SessionOpt {
	return func(o *sessionOpts) { o.autoDump = true }
}

// Session binds one capture handle to a packet queue.
//
// A session is open and idle after construction. Start runs a capture loop
// in the background until Stop or Dispose. While the loop runs, Stop and
// Dispose only clear the capturing flag and latch the request; the loop
// performs the real stop and then the real dispose when it exits.
type Session struct {
	id      uint64
	backend Backend
	cfg     OpenConfig
	opts    sessionOpts
	queue   *pktqueue.Queue
	staging *pktqueue.Queue // backend side of the queue, drained by the loop
	log     *logrus.Entry

	mu             sync.Mutex
	handle         Handle
	filter         *Filter
	dumper         Dumper
	capturing      bool
	looping        bool
	delayedStop    bool
	delayedDispose bool
	disposed       bool
	done           chan struct{}
	err            error
	stats          netutil.Statistics
}

// NewLiveSession opens device for live capture.
func NewLiveSession(b Backend, device string, opts ...SessionOpt) (*Session, error) {
	return newSession(b, ModeLive, device, opts...)
}

// NewOfflineSession replays a capture file.
func NewOfflineSession(b Backend, file string, opts ...SessionOpt) (*Session, error) {
	return newSession(b, ModeOffline, file, opts...)
}

func newSession(b Backend, mode Mode, source string, opts ...SessionOpt) (*Session, error) {
	o := sessionOpts{snaplen: DefaultSnaplen, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := OpenConfig{Mode: mode, Source: source, Snaplen: o.snaplen, Promisc: o.promisc, Timeout: o.timeout}
	h, err := b.Open(cfg)
	if err != nil {
		return nil, errcode.Wrap(errcode.CodeSession, err, "new %s session", mode)
	}

	done := make(chan struct{})
	close(done)

	id := newSessionID()
	s := &Session{
		id:      id,
		backend: b,
		cfg:     cfg,
		opts:    o,
		queue:   pktqueue.New(),
		staging: pktqueue.New(),
		log:     logrus.WithFields(logrus.Fields{"session": id, "mode": mode, "source": source}),
		handle:  h,
		done:    done,
	}
	s.log.Debug("Opened capture session")
	return s, nil
}

func (s *Session) ID() uint64             { return s.id }
func (s *Session) Source() string         { return s.cfg.Source }
func (s *Session) Queue() *pktqueue.Queue { return s.queue }
func (s *Session) Config() OpenConfig     { return s.cfg }
func (s *Session) AutoDump() bool         { return s.opts.autoDump }

// Mode is ModeNone once the session no longer holds a handle.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return ModeNone
	}
	return s.cfg.Mode
}

func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

func (s *Session) setCapturing(v bool) {
	s.mu.Lock()
	s.capturing = v
	s.mu.Unlock()
}

func (s *Session) HandleOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) DelayedStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayedStop
}

func (s *Session) DelayedDispose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayedDispose
}

// Filter returns the installed filter, nil if none.
func (s *Session) Filter() *Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter compiles and installs expr, replacing the previous filter.
// It may be called while capturing.
func (s *Session) SetFilter(expr string, optimize bool, netmask netaddr.IPv4Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked("set filter"); err != nil {
		return err
	}
	f, err := s.backend.InstallFilter(s.handle, s.filter, expr, optimize, netmask)
	if err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "session %d: set filter", s.id)
	}
	s.filter = f
	s.log.WithField("filter", expr).Debug("Installed filter")
	return nil
}

// Start launches the capture loop. Only one loop runs per session.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked("start"); err != nil {
		return err
	}
	if s.capturing || s.looping {
		return errcode.New(errcode.CodeSession, "session %d: only one capture loop allowed per session", s.id)
	}

	s.capturing = true
	s.looping = true
	s.err = nil
	s.done = make(chan struct{})
	go s.loop(s.done)

	s.log.Info("Started capture")
	return nil
}

// Stop clears the capturing flag, then closes and reopens the handle. The
// close is deferred to the loop while one is running.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil
	}
	s.capturing = false
	if s.looping {
		if !s.delayedStop {
			s.delayedStop = true
			s.log.Debug("Delayed stop")
		}
		return nil
	}
	return s.stopLocked()
}

// stopLocked releases the handle with its filter and dump file, then opens
// a fresh handle so the session stays reusable.
func (s *Session) stopLocked() error {
	s.delayedStop = false
	if s.handle != nil {
		s.backend.Close(s.handle, s.filter, s.dumper)
		s.handle, s.filter, s.dumper = nil, nil, nil
	}

	h, err := s.backend.Open(s.cfg)
	if err != nil {
		s.log.WithError(err).Warn("Fail to reopen capture handle")
		return errcode.Wrap(errcode.CodeSession, err, "session %d: cannot restart session", s.id)
	}
	s.handle = h
	s.log.Info("Stopped capture")
	return nil
}

// Dispose releases the handle, filter and dump file for good. While the
// loop runs the release is deferred to its exit.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.capturing = false
	if s.looping {
		if !s.delayedDispose {
			s.delayedDispose = true
			s.log.Debug("Delayed dispose")
		}
		return
	}
	s.disposeLocked()
}

func (s *Session) disposeLocked() {
	s.delayedDispose = false
	if s.handle != nil {
		s.backend.Close(s.handle, s.filter, s.dumper)
		s.handle, s.filter, s.dumper = nil, nil, nil
	}
	s.capturing = false
	s.disposed = true
	s.log.Info("Disposed capture session")
}

// OpenDumpFile starts writing packets to name in the backend's dump format.
func (s *Session) OpenDumpFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked("open dump file"); err != nil {
		return err
	}
	if s.dumper != nil {
		return errcode.New(errcode.CodeSession, "session %d: dump file %s already open", s.id, s.dumper.Name())
	}
	d, err := s.backend.DumpOpen(s.handle, name)
	if err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "session %d: open dump file %s", s.id, name)
	}
	s.dumper = d
	return nil
}

func (s *Session) DumpPacket(pkt pktqueue.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpLocked(pkt)
}

func (s *Session) dumpLocked(pkt pktqueue.Packet) error {
	if s.dumper == nil {
		return errcode.New(errcode.CodeSession, "session %d: no dump file open", s.id)
	}
	return s.backend.DumpWrite(s.dumper, pkt)
}

func (s *Session) CloseDumpFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dumper == nil {
		return errcode.New(errcode.CodeSession, "session %d: no dump file open", s.id)
	}
	d := s.dumper
	s.dumper = nil
	return s.backend.DumpClose(d)
}

// DumpFile is the name of the open dump file, empty if none.
func (s *Session) DumpFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dumper == nil {
		return ""
	}
	return s.dumper.Name()
}

// Inject sends a raw frame through the session's handle.
func (s *Session) Inject(pkt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked("inject"); err != nil {
		return err
	}
	err := s.backend.Inject(s.handle, pkt)
	if err != nil {
		s.stats.TxErrors++
		return err
	}
	s.stats.TxPackets++
	s.stats.TxBytes += uint64(len(pkt))
	return nil
}

// Done is closed when the current capture loop has exited and resolved any
// delayed stop or dispose. It is closed already when no loop runs.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err is the error that ended the last capture loop, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the capture loop exits or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Stats() netutil.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Timestamp = time.Now()
	return stats
}

func (s *Session) usableLocked(op string) error {
	if s.disposed {
		return errcode.New(errcode.CodeSession, "session %d: %s on disposed session", s.id, op)
	}
	if s.handle == nil {
		return errcode.New(errcode.CodeSession, "session %d: %s without capture handle", s.id, op)
	}
	return nil
}
