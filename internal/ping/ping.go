package ping

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/netutil"
	"github.com/zxhio/netdev/pkg/nic"
	"golang.org/x/time/rate"
)

const (
	DefaultCount    = 4
	DefaultInterval = time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultTTL      = 255

	// Echo replies only; id, seq and destination are matched per probe.
	ReplyFilter = "icmp[icmptype] = icmp-echoreply"
)

// EchoPayload fills every echo request.
var EchoPayload = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

type pingOpts struct {
	count    int
	interval time.Duration
	timeout  time.Duration
	ttl      uint8
	id       uint16
	poll     time.Duration
}

type PingOpt func(*pingOpts)

func WithCount(n int) PingOpt {
	return func(o *pingOpts) { o.count = n }
}

func WithInterval(d time.Duration) PingOpt {
	return func(o *pingOpts) { o.interval = d }
}

func WithTimeout(d time.Duration) PingOpt {
	return func(o *pingOpts) { o.timeout = d }
}

func WithTTL(ttl uint8) PingOpt {
	return func(o *pingOpts) { o.ttl = ttl }
}

func WithID(id uint16) PingOpt {
	return func(o *pingOpts) { o.id = id }
}

// WithPollInterval sets how often the reply queue is checked.
func WithPollInterval(d time.Duration) PingOpt {
	return func(o *pingOpts) { o.poll = d }
}

// Result of one echo request.
type Result struct {
	Target   netaddr.IPv4Addr `json:"target"`
	Seq      uint16           `json:"seq"`
	Received bool             `json:"received"`
	RTT      time.Duration    `json:"rtt"`
}

type Pinger struct {
	backend  capture.Backend
	resolver *arp.Resolver
	opts     pingOpts
}

func New(b capture.Backend, resolver *arp.Resolver, opts ...PingOpt) *Pinger {
	o := pingOpts{
		count:    DefaultCount,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		ttl:      DefaultTTL,
		id:       uint16(rand.IntN(1024)),
		poll:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if resolver == nil {
		resolver = arp.NewResolver(b)
	}
	return &Pinger{backend: b, resolver: resolver, opts: o}
}

func (p *Pinger) ID() uint16 { return p.opts.id }

// Run resolves target once, then sends count echo requests paced by the
// interval. fn, if not nil, sees each result as it completes.
func (p *Pinger) Run(ctx context.Context, n *nic.NIC, target netaddr.IPv4Addr, fn func(Result)) ([]Result, error) {
	dstHw, found, err := p.resolver.Resolve(ctx, n, target)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errcode.New(errcode.CodeResolution, "cannot resolve %s to a hardware address", target)
	}

	if !n.Opened() {
		if err := n.Open(p.backend); err != nil {
			return nil, err
		}
		defer n.Close()
	}

	log := logrus.WithFields(logrus.Fields{"nic": n.Name(), "target": target, "hw_addr": dstHw, "id": p.opts.id})
	log.Debug("Start ping")

	limiter := rate.NewLimiter(rate.Every(p.opts.interval), 1)
	results := make([]Result, 0, p.opts.count)
	for seq := 0; seq < p.opts.count; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}
		res, err := p.Once(ctx, n, dstHw, target, netutil.NewU16(int64(seq)).Uint16())
		if err != nil {
			return results, err
		}
		if fn != nil {
			fn(res)
		}
		results = append(results, res)
	}
	return results, nil
}

// Once sends a single echo request to target at dstHw and waits for its
// reply. The capture is running before the request goes out.
func (p *Pinger) Once(ctx context.Context, n *nic.NIC, dstHw netaddr.HwAddr, target netaddr.IPv4Addr, seq uint16) (Result, error) {
	res := Result{Target: target, Seq: seq}

	frame, err := NewEchoFrame(n.HwAddr(), dstHw, n.IP(), target, p.opts.ttl, p.opts.id, seq)
	if err != nil {
		return res, err
	}

	s, err := capture.NewLiveSession(p.backend, n.Name(), capture.WithTimeout(10*time.Millisecond))
	if err != nil {
		return res, err
	}
	defer func() {
		s.Dispose()
		<-s.Done()
	}()

	if err := s.SetFilter(ReplyFilter, true, n.Netmask()); err != nil {
		return res, err
	}
	if err := s.Start(); err != nil {
		return res, err
	}

	start := time.Now()
	if err := n.Inject(frame); err != nil {
		return res, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.timeout)
	defer cancel()
	ticker := time.NewTicker(p.opts.poll)
	defer ticker.Stop()

	for {
		for {
			pkt, ok := s.Queue().TryPop()
			if !ok {
				break
			}
			if MatchReply(pkt.Data, n.IP(), p.opts.id, seq) {
				res.Received = true
				res.RTT = time.Since(start)
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return res, nil
			}
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

// NewEchoFrame builds ICMP echo request in IPv4 in Ethernet II.
func NewEchoFrame(srcHw, dstHw netaddr.HwAddr, src, dst netaddr.IPv4Addr, ttl uint8, id, seq uint16) ([]byte, error) {
	icmp := fastpkt.ICMP{Type: fastpkt.ICMPTypeEchoRequest, ID: id, Seq: seq, Payload: EchoPayload}
	icmpData, err := icmp.Build()
	if err != nil {
		return nil, err
	}

	ip := fastpkt.IPv4{
		Version:  fastpkt.IPv4Version,
		TTL:      ttl,
		Protocol: fastpkt.IPProtocolICMP,
		SrcIP:    src,
		DstIP:    dst,
		Payload:  icmpData,
	}
	ipData, err := ip.Build()
	if err != nil {
		return nil, err
	}

	eth := fastpkt.EthernetII{Dst: dstHw, Src: srcHw, Type: fastpkt.EtherTypeIPv4, Payload: ipData}
	return eth.Build()
}

// MatchReply reports whether data is the echo reply to us for id and seq.
func MatchReply(data []byte, me netaddr.IPv4Addr, id, seq uint16) bool {
	pkt, err := fastpkt.NewPacket(data)
	if err != nil || pkt.L4Proto != uint16(fastpkt.IPProtocolICMP) {
		return false
	}
	if pkt.DstIP != me || pkt.ICMP.Type != fastpkt.ICMPTypeEchoReply {
		return false
	}
	return pkt.ICMP.ID == id && pkt.ICMP.Seq == seq
}
