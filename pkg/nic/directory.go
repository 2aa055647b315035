package nic

import (
	"net"
	"sync"

	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/netutil"
)

// Index addresses one NIC within a Directory.
type Index int

// Info is what a Directory knows about one NIC.
type Info struct {
	Index       Index            `json:"index"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	IP          netaddr.IPv4Addr `json:"ip"`
	Netmask     netaddr.IPv4Addr `json:"netmask"`
	Gateway     netaddr.IPv4Addr `json:"gateway"`
	HwAddr      netaddr.HwAddr   `json:"hw_addr"`
	MTU         int              `json:"mtu"`
	Up          bool             `json:"up"`
	Physical    bool             `json:"physical"`
}

// SameSubnet reports whether ip is on this NIC's directly attached subnet.
func (info Info) SameSubnet(ip netaddr.IPv4Addr) bool {
	return info.IP.SameSubnet(ip, info.Netmask)
}

// Directory is a read only list of NICs.
type Directory interface {
	Len() int
	Info(idx Index) (Info, error)
}

// StaticDirectory is a fixed list, indexed by position.
type StaticDirectory []Info

func (d StaticDirectory) Len() int { return len(d) }

func (d StaticDirectory) Info(idx Index) (Info, error) {
	if idx < 0 || int(idx) >= len(d) {
		return Info{}, errcode.New(errcode.CodeValidation, "nic index %d out of range [0, %d)", idx, len(d))
	}
	info := d[idx]
	info.Index = idx
	return info, nil
}

// SystemDirectory lists the host's NICs. It is populated on first use,
// exactly once, and never changes afterwards.
type SystemDirectory struct {
	once  sync.Once
	load  func() ([]Info, error)
	infos StaticDirectory
	err   error
}

var defaultDirectory = NewSystemDirectory(loadSystemNICs)

// Default is the process wide directory of the host's NICs.
func Default() *SystemDirectory { return defaultDirectory }

func NewSystemDirectory(load func() ([]Info, error)) *SystemDirectory {
	return &SystemDirectory{load: load}
}

func (d *SystemDirectory) init() {
	d.once.Do(func() {
		infos, err := d.load()
		if err != nil {
			d.err = errcode.Wrap(errcode.CodeInternal, err, "list nics")
			logrus.WithError(err).Warn("Fail to list nics")
			return
		}
		for i := range infos {
			infos[i].Index = Index(i)
		}
		d.infos = infos
		logrus.WithField("num", len(infos)).Debug("Loaded nic directory")
	})
}

// Err is the error of the one time load, if any.
func (d *SystemDirectory) Err() error {
	d.init()
	return d.err
}

func (d *SystemDirectory) Len() int {
	d.init()
	return len(d.infos)
}

func (d *SystemDirectory) Info(idx Index) (Info, error) {
	d.init()
	if d.err != nil {
		return Info{}, d.err
	}
	return d.infos.Info(idx)
}

// All returns a copy of every entry.
func (d *SystemDirectory) All() ([]Info, error) {
	d.init()
	if d.err != nil {
		return nil, d.err
	}
	return append([]Info(nil), d.infos...), nil
}

// Lookup finds the index of the NIC called name.
func Lookup(dir Directory, name string) (Index, error) {
	for i := 0; i < dir.Len(); i++ {
		info, err := dir.Info(Index(i))
		if err != nil {
			return -1, err
		}
		if info.Name == name {
			return Index(i), nil
		}
	}
	return -1, errcode.New(errcode.CodeNotExist, "nic %s not found", name)
}

func loadSystemNICs() ([]Info, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, errors.Wrap(err, "netlink.LinkList")
	}

	gateways, err := defaultGateways()
	if err != nil {
		logrus.WithError(err).Warn("Fail to list default routes")
	}
	descriptions := pcapDescriptions()

	infos := make([]Info, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		info := Info{
			Name:        attrs.Name,
			Description: descriptions[attrs.Name],
			Gateway:     gateways[attrs.Index],
			MTU:         attrs.MTU,
			Up:          attrs.Flags&net.FlagUp != 0,
			Physical:    netutil.IsPhyNic(attrs.Name),
		}
		if len(attrs.HardwareAddr) == netaddr.SizeofHwAddr {
			info.HwAddr = netaddr.NewHwAddrFromHardwareAddr(attrs.HardwareAddr)
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, errors.Wrapf(err, "netlink.AddrList %s", attrs.Name)
		}
		if len(addrs) > 0 && addrs[0].IPNet != nil {
			info.IP = netaddr.NewIPv4AddrFromIP(addrs[0].IP)
			info.Netmask = netaddr.NewIPv4AddrFromIP(net.IP(addrs[0].Mask))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// defaultGateways maps link index to the gateway of its IPv4 default route.
func defaultGateways() (map[int]netaddr.IPv4Addr, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, errors.Wrap(err, "netlink.RouteList")
	}

	gateways := make(map[int]netaddr.IPv4Addr)
	for _, r := range routes {
		if r.Gw == nil {
			continue
		}
		if r.Dst != nil {
			if ones, _ := r.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		if _, ok := gateways[r.LinkIndex]; !ok {
			gateways[r.LinkIndex] = netaddr.NewIPv4AddrFromIP(r.Gw)
		}
	}
	return gateways, nil
}

func pcapDescriptions() map[string]string {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		logrus.WithError(err).Debug("Fail to find pcap devices")
		return nil
	}
	descriptions := make(map[string]string, len(devs))
	for _, dev := range devs {
		descriptions[dev.Name] = dev.Description
	}
	return descriptions
}
