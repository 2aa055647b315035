package capture

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/pktqueue"
	"golang.org/x/net/bpf"
)

var pcapInitOnce sync.Once

// PcapBackend implements Backend over libpcap.
type PcapBackend struct{}

func NewPcapBackend() *PcapBackend {
	pcapInitOnce.Do(func() {
		logrus.WithField("version", pcap.Version()).Debug("Init pcap backend")
	})
	return &PcapBackend{}
}

type pcapHandle struct {
	*pcap.Handle
	mode   Mode
	source string
	closed atomic.Bool
}

type pcapDumper struct {
	name string
	file *os.File
	w    *pcapgo.Writer
}

func (d *pcapDumper) Name() string { return d.name }

func (*PcapBackend) Open(cfg OpenConfig) (Handle, error) {
	var (
		h   *pcap.Handle
		err error
	)
	switch cfg.Mode {
	case ModeLive:
		h, err = pcap.OpenLive(cfg.Source, int32(cfg.Snaplen), cfg.Promisc, cfg.Timeout)
	case ModeOffline:
		h, err = pcap.OpenOffline(cfg.Source)
	default:
		return nil, errcode.New(errcode.CodeSession, "open %s: unsupported mode %s", cfg.Source, cfg.Mode)
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.CodeSession, err, "open %s %s", cfg.Mode, cfg.Source)
	}
	return &pcapHandle{Handle: h, mode: cfg.Mode, source: cfg.Source}, nil
}

func (*PcapBackend) Close(h Handle, _ *Filter, d Dumper) {
	if d != nil {
		if dumper, ok := d.(*pcapDumper); ok {
			dumper.file.Close()
		}
	}
	ph, ok := h.(*pcapHandle)
	if !ok || ph == nil {
		return
	}
	if ph.closed.CompareAndSwap(false, true) {
		ph.Handle.Close()
	}
}

// InstallFilter compiles expr and installs it on the handle.
//
// Live handles compile against the device, so libpcap looks up the device
// netmask with pcap_lookupnet and ignores netmask. Offline handles compile
// against the file's link type and snap length with an unknown netmask, so
// expressions like "ip broadcast" are rejected there. gopacket always
// compiles with optimization on. Both netmask and optimize are recorded on
// the returned Filter.
func (*PcapBackend) InstallFilter(h Handle, _ *Filter, expr string, optimize bool, netmask netaddr.IPv4Addr) (*Filter, error) {
	ph, err := openPcapHandle(h)
	if err != nil {
		return nil, err
	}

	var insts []pcap.BPFInstruction
	if ph.mode == ModeLive {
		insts, err = ph.CompileBPFFilter(expr)
		checkDeviceNetmask(ph.source, netmask)
	} else {
		insts, err = pcap.CompileBPFFilter(ph.LinkType(), ph.SnapLen(), expr)
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.CodeSession, err, "compile filter %q", expr)
	}
	if err := ph.SetBPFInstructionFilter(insts); err != nil {
		return nil, errcode.Wrap(errcode.CodeSession, err, "install filter %q", expr)
	}

	program := make([]bpf.RawInstruction, len(insts))
	for i, ins := range insts {
		program[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return &Filter{Expr: expr, Optimize: optimize, Netmask: netmask, Program: program}, nil
}

// checkDeviceNetmask logs when netmask differs from the one libpcap
// finds on device.
func checkDeviceNetmask(device string, netmask netaddr.IPv4Addr) {
	if netmask.IsZero() || !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return
	}
	for _, dev := range devs {
		if dev.Name != device {
			continue
		}
		for _, addr := range dev.Addresses {
			if addr.IP.To4() == nil || len(addr.Netmask) == 0 {
				continue
			}
			devMask := netaddr.NewIPv4AddrFromIP(net.IP(addr.Netmask))
			if devMask != netmask {
				logrus.WithFields(logrus.Fields{
					"device":         device,
					"netmask":        netmask,
					"device_netmask": devMask,
				}).Debug("Filter netmask differs from device netmask")
			}
			return
		}
	}
}

func (*PcapBackend) CaptureOne(h Handle, q *pktqueue.Queue) (Result, error) {
	ph, err := openPcapHandle(h)
	if err != nil {
		return ResultBadHandle, err
	}

	data, ci, err := ph.ReadPacketData()
	switch {
	case err == nil:
		q.Push(pktqueue.Packet{Timestamp: ci.Timestamp, Length: ci.Length, Data: data})
		return ResultPacket, nil
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return ResultTimeout, nil
	case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
		return ResultEOF, nil
	default:
		return ResultError, errcode.Wrap(errcode.CodeSession, err, "read %s", ph.source)
	}
}

func (*PcapBackend) DumpOpen(h Handle, name string) (Dumper, error) {
	ph, err := openPcapHandle(h)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, errcode.Wrap(errcode.CodeSession, err, "create dump file")
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(ph.SnapLen()), ph.LinkType()); err != nil {
		f.Close()
		return nil, errcode.Wrap(errcode.CodeSession, err, "write dump header %s", name)
	}
	return &pcapDumper{name: name, file: f, w: w}, nil
}

func (*PcapBackend) DumpWrite(d Dumper, pkt pktqueue.Packet) error {
	dumper, ok := d.(*pcapDumper)
	if !ok || dumper == nil {
		return errcode.New(errcode.CodeSession, "dump file not open")
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     pkt.Timestamp,
		CaptureLength: len(pkt.Data),
		Length:        max(pkt.Length, len(pkt.Data)),
	}
	if err := dumper.w.WritePacket(ci, pkt.Data); err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "write dump file %s", dumper.name)
	}
	return nil
}

func (*PcapBackend) DumpClose(d Dumper) error {
	dumper, ok := d.(*pcapDumper)
	if !ok || dumper == nil {
		return errcode.New(errcode.CodeSession, "dump file not open")
	}
	if err := dumper.file.Close(); err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "close dump file %s", dumper.name)
	}
	return nil
}

func (*PcapBackend) Inject(h Handle, pkt []byte) error {
	ph, err := openPcapHandle(h)
	if err != nil {
		return err
	}
	if err := ph.WritePacketData(pkt); err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "inject %d bytes on %s", len(pkt), ph.source)
	}
	return nil
}

func openPcapHandle(h Handle) (*pcapHandle, error) {
	ph, ok := h.(*pcapHandle)
	if !ok || ph == nil || ph.closed.Load() {
		return nil, errcode.New(errcode.CodeSession, "invalid pcap handle")
	}
	return ph, nil
}
