package nic

import (
	"sync"

	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

// NIC is one entry of a Directory plus an optional injection handle.
type NIC struct {
	index Index
	info  Info

	mu      sync.Mutex
	backend capture.Backend
	handle  capture.Handle
}

// New looks idx up in dir. The NIC keeps a snapshot of its Info.
func New(dir Directory, idx Index) (*NIC, error) {
	info, err := dir.Info(idx)
	if err != nil {
		return nil, err
	}
	return &NIC{index: idx, info: info}, nil
}

// ByName finds the NIC called name in dir.
func ByName(dir Directory, name string) (*NIC, error) {
	idx, err := Lookup(dir, name)
	if err != nil {
		return nil, err
	}
	return New(dir, idx)
}

func (n *NIC) Index() Index              { return n.index }
func (n *NIC) Info() Info                { return n.info }
func (n *NIC) Name() string              { return n.info.Name }
func (n *NIC) Description() string       { return n.info.Description }
func (n *NIC) IP() netaddr.IPv4Addr      { return n.info.IP }
func (n *NIC) Netmask() netaddr.IPv4Addr { return n.info.Netmask }
func (n *NIC) Gateway() netaddr.IPv4Addr { return n.info.Gateway }
func (n *NIC) HwAddr() netaddr.HwAddr    { return n.info.HwAddr }

// Open acquires a live handle on the NIC for injection.
func (n *NIC) Open(b capture.Backend) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handle != nil {
		return errcode.New(errcode.CodeExist, "nic %s already open", n.info.Name)
	}
	h, err := b.Open(capture.OpenConfig{
		Mode:    capture.ModeLive,
		Source:  n.info.Name,
		Snaplen: capture.DefaultSnaplen,
		Timeout: capture.DefaultTimeout,
	})
	if err != nil {
		return errcode.Wrap(errcode.CodeSession, err, "open nic %s", n.info.Name)
	}
	n.backend, n.handle = b, h
	return nil
}

// Opened reports whether the NIC holds an injection handle.
func (n *NIC) Opened() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handle != nil
}

// Inject sends one raw frame out of the NIC.
func (n *NIC) Inject(pkt []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handle == nil {
		return errcode.New(errcode.CodeSession, "nic %s not open", n.info.Name)
	}
	return n.backend.Inject(n.handle, pkt)
}

func (n *NIC) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handle != nil {
		n.backend.Close(n.handle, nil, nil)
		n.backend, n.handle = nil, nil
	}
	return nil
}
