// Package arp resolves IPv4 addresses to hardware addresses on a local link.
package arp

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
)

const (
	DefaultTimeout  = 2 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

type Resolver struct {
	Backend  capture.Backend
	Timeout  time.Duration
	Interval time.Duration
}

func NewResolver(b capture.Backend) *Resolver {
	return &Resolver{Backend: b, Timeout: DefaultTimeout, Interval: DefaultInterval}
}

// NextHop is the address to ARP for when talking to target through n.
// Targets outside n's subnet go through its gateway.
func NextHop(n *nic.NIC, target netaddr.IPv4Addr) netaddr.IPv4Addr {
	if n.Info().SameSubnet(target) {
		return target
	}
	return n.Gateway()
}

// NewRequestFrame builds a broadcast ARP request from n for target.
func NewRequestFrame(n *nic.NIC, target netaddr.IPv4Addr) ([]byte, error) {
	arp, err := fastpkt.NewARPRequest(n.HwAddr(), n.IP(), target).Build()
	if err != nil {
		return nil, err
	}
	eth := fastpkt.EthernetII{
		Dst:     netaddr.BroadcastHwAddr,
		Src:     n.HwAddr(),
		Type:    fastpkt.EtherTypeARP,
		Payload: arp,
	}
	return eth.Build()
}

// Resolve asks the link for the hardware address of target, or of n's
// gateway when target is off subnet. No reply within the timeout is not an
// error: found is false.
func (r *Resolver) Resolve(ctx context.Context, n *nic.NIC, target netaddr.IPv4Addr) (hw netaddr.HwAddr, found bool, err error) {
	hop := NextHop(n, target)
	if hop.IsZero() {
		return hw, false, errcode.New(errcode.CodeResolution, "%s is off subnet of %s and no gateway is set", target, n.Name())
	}

	frame, err := NewRequestFrame(n, hop)
	if err != nil {
		return hw, false, err
	}

	s, err := capture.NewLiveSession(r.Backend, n.Name())
	if err != nil {
		return hw, false, errcode.Wrap(errcode.CodeResolution, err, "arp %s", target)
	}
	defer func() {
		s.Dispose()
		<-s.Done()
	}()

	if err := s.SetFilter("arp", false, n.Netmask()); err != nil {
		return hw, false, errcode.Wrap(errcode.CodeResolution, err, "arp %s", target)
	}
	if err := s.Start(); err != nil {
		return hw, false, errcode.Wrap(errcode.CodeResolution, err, "arp %s", target)
	}

	if err := r.inject(n, frame); err != nil {
		return hw, false, errcode.Wrap(errcode.CodeResolution, err, "arp %s", target)
	}

	log := logrus.WithFields(logrus.Fields{"nic": n.Name(), "target": target, "next_hop": hop})
	log.Debug("Sent arp request")

	timeout, interval := r.Timeout, r.Interval
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if hw, ok := r.drain(s, hop); ok {
			log.WithField("hw_addr", hw).Debug("Resolved")
			return hw, true, nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				log.Debug("No arp reply")
				return hw, false, nil
			}
			return hw, false, ctx.Err()
		case <-s.Done():
			if err := s.Err(); err != nil {
				return hw, false, errcode.Wrap(errcode.CodeResolution, err, "arp %s", target)
			}
			hw, ok := r.drain(s, hop)
			return hw, ok, nil
		case <-ticker.C:
		}
	}
}

// drain pops every queued packet looking for a reply from hop.
func (r *Resolver) drain(s *capture.Session, hop netaddr.IPv4Addr) (netaddr.HwAddr, bool) {
	for {
		pkt, ok := s.Queue().TryPop()
		if !ok {
			return netaddr.HwAddr{}, false
		}
		if hw, ok := matchReply(pkt.Data, hop); ok {
			return hw, true
		}
	}
}

// inject sends frame through n, opening it for the duration when closed.
func (r *Resolver) inject(n *nic.NIC, frame []byte) error {
	if !n.Opened() {
		if err := n.Open(r.Backend); err != nil {
			return err
		}
		defer n.Close()
	}
	return n.Inject(frame)
}

// matchReply returns the sender hardware address of an ARP reply from ip.
func matchReply(data []byte, ip netaddr.IPv4Addr) (netaddr.HwAddr, bool) {
	var eth fastpkt.EthernetII
	if err := eth.Parse(data, 0); err != nil || eth.Type != fastpkt.EtherTypeARP {
		return netaddr.HwAddr{}, false
	}
	var arp fastpkt.ARP
	if err := arp.Parse(eth.Payload, 0); err != nil || arp.Opcode != fastpkt.ARPReply {
		return netaddr.HwAddr{}, false
	}
	src, err := arp.SrcIP()
	if err != nil || src != ip {
		return netaddr.HwAddr{}, false
	}
	hw, err := arp.SrcHw()
	if err != nil {
		return netaddr.HwAddr{}, false
	}
	return hw, true
}
