package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/pktqueue"
	"golang.org/x/net/bpf"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeLive
	ModeOffline
)

var mode2str = map[Mode]string{
	ModeNone:    "none",
	ModeLive:    "live",
	ModeOffline: "offline",
}

func (m Mode) String() string {
	s, ok := mode2str[m]
	if !ok {
		return fmt.Sprintf("Mode(%d)", m)
	}
	return s
}

// Result of one CaptureOne call.
type Result int

const (
	ResultPacket    Result = 1  // one packet pushed into the queue
	ResultTimeout   Result = 0  // read timeout, no packet
	ResultError     Result = -1 // backend error
	ResultEOF       Result = -2 // end of file, offline only
	ResultBadHandle Result = -3 // handle is not usable
)

var result2str = map[Result]string{
	ResultPacket:    "packet",
	ResultTimeout:   "timeout",
	ResultError:     "error",
	ResultEOF:       "eof",
	ResultBadHandle: "bad handle",
}

func (r Result) String() string {
	s, ok := result2str[r]
	if !ok {
		return fmt.Sprintf("Result(%d)", r)
	}
	return s
}

// OpenConfig describes what a Backend opens. Source is a device name in
// live mode and a capture file path in offline mode.
type OpenConfig struct {
	Mode    Mode
	Source  string
	Snaplen int
	Promisc bool
	Timeout time.Duration
}

// Handle is an open capture descriptor owned by a Backend.
type Handle interface {
	LinkType() layers.LinkType
	SnapLen() int
}

// Dumper is an open dump file owned by a Backend.
type Dumper interface {
	Name() string
}

// Filter is a compiled capture filter.
type Filter struct {
	Expr     string               `json:"expr"`
	Optimize bool                 `json:"optimize"`
	Netmask  netaddr.IPv4Addr     `json:"netmask"`
	Program  []bpf.RawInstruction `json:"-"`
}

// Disassemble renders the compiled program one instruction per line.
func (f *Filter) Disassemble() []string {
	if f == nil {
		return nil
	}
	insts, _ := bpf.Disassemble(f.Program)
	lines := make([]string, 0, len(insts))
	for i, inst := range insts {
		lines = append(lines, fmt.Sprintf("(%03d) %v", i, inst))
	}
	return lines
}

// Backend is the native capture and injection facility.
//
// CaptureOne reads at most one packet, pushing it into q on ResultPacket.
// The error describes ResultError and ResultBadHandle. Close releases the
// handle together with the filter and dumper, any of which may be nil.
type Backend interface {
	Open(cfg OpenConfig) (Handle, error)
	Close(h Handle, f *Filter, d Dumper)
	InstallFilter(h Handle, prev *Filter, expr string, optimize bool, netmask netaddr.IPv4Addr) (*Filter, error)
	CaptureOne(h Handle, q *pktqueue.Queue) (Result, error)
	DumpOpen(h Handle, name string) (Dumper, error)
	DumpWrite(d Dumper, pkt pktqueue.Packet) error
	DumpClose(d Dumper) error
	Inject(h Handle, pkt []byte) error
}
