package model

import (
	"time"

	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/netutil"
)

// SessionSpec describes a capture session to create. Exactly one of NIC
// and File is set.
type SessionSpec struct {
	NIC       string `json:"nic,omitempty"`
	File      string `json:"file,omitempty"`
	Snaplen   int    `json:"snaplen,omitempty"`
	Promisc   bool   `json:"promisc,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
	Filter    string `json:"filter,omitempty"`
	Optimize  bool   `json:"optimize,omitempty"`
	DumpFile  string `json:"dump_file,omitempty"`
	AutoDump  bool   `json:"auto_dump,omitempty"`
}

type SessionInfo struct {
	ID             uint64             `json:"id"`
	Source         string             `json:"source"`
	Mode           string             `json:"mode"`
	Capturing      bool               `json:"capturing"`
	HandleOpen     bool               `json:"handle_open"`
	Disposed       bool               `json:"disposed"`
	DelayedStop    bool               `json:"delayed_stop,omitempty"`
	DelayedDispose bool               `json:"delayed_dispose,omitempty"`
	Filter         string             `json:"filter,omitempty"`
	DumpFile       string             `json:"dump_file,omitempty"`
	Queued         int                `json:"queued"`
	Error          string             `json:"error,omitempty"`
	Stats          netutil.Statistics `json:"stats"`
}

type CapturedPacket struct {
	Timestamp  time.Time `json:"timestamp"`
	Length     int       `json:"length"`
	CaptureLen int       `json:"capture_len"`
	Summary    string    `json:"summary"`
	Hex        string    `json:"hex"`
}

type ARPResult struct {
	NIC    string           `json:"nic"`
	IP     netaddr.IPv4Addr `json:"ip"`
	HwAddr netaddr.HwAddr   `json:"hw_addr"`
	Found  bool             `json:"found"`
}
