package bench

import (
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/zxhio/netdev/pkg/netutil"
	"github.com/zxhio/netdev/pkg/utils"
	"golang.org/x/sys/unix"
)

// Tx transmits one prepared frame per call and counts the result.
type Tx interface {
	Name() string
	Transmit([]byte)
	Close() error
	Stats() netutil.Statistics
}

// Injector is satisfied by *nic.NIC.
type Injector interface {
	Name() string
	Inject([]byte) error
}

type txStats struct {
	mu   sync.Mutex
	stat netutil.Statistics
}

func (s *txStats) add(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stat.TxErrors++
	} else {
		s.stat.TxBytes += uint64(n)
		s.stat.TxPackets++
	}
	s.stat.TxIOs++
}

func (s *txStats) snapshot() netutil.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := s.stat
	stat.Timestamp = time.Now()
	return stat
}

// injectTx sends through an opened NIC.
type injectTx struct {
	inj Injector
	txStats
}

func NewInjectTx(inj Injector) Tx {
	return &injectTx{inj: inj}
}

func (t *injectTx) Name() string { return t.inj.Name() }

func (t *injectTx) Transmit(data []byte) { t.add(len(data), t.inj.Inject(data)) }

func (t *injectTx) Stats() netutil.Statistics { return t.snapshot() }

func (t *injectTx) Close() error { return nil }

// afpTx sends on a raw AF_PACKET socket, bypassing libpcap.
type afpTx struct {
	name string
	fd   int
	addr unix.SockaddrLinklayer
	txStats
}

func NewAFPacketTx(ifaceName string) (Tx, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, errors.Wrap(err, "net.InterfaceByName")
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, unix.ETH_P_ALL)
	if err != nil {
		return nil, errors.Wrap(err, "unix.Socket")
	}
	utils.VerbosePrintln("New AF_PACKET socket, fd: %d", fd)

	return &afpTx{
		name: ifaceName,
		fd:   fd,
		addr: unix.SockaddrLinklayer{
			Protocol: uint16(syscall.ETH_P_ALL),
			Ifindex:  iface.Index,
			Hatype:   1, // ARPHRD_ETHER
			Pkttype:  syscall.PACKET_OUTGOING,
		},
	}, nil
}

func (p *afpTx) Name() string { return p.name }

func (p *afpTx) Transmit(data []byte) { p.add(len(data), unix.Sendto(p.fd, data, 0, &p.addr)) }

func (p *afpTx) Stats() netutil.Statistics { return p.snapshot() }

func (p *afpTx) Close() error {
	return unix.Close(p.fd)
}
