package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/arp"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
)

// NICService lists NICs and resolves addresses on them.
type NICService struct {
	dir      nic.Directory
	resolver *arp.Resolver
}

func NewNICService(dir nic.Directory, resolver *arp.Resolver) *NICService {
	return &NICService{dir: dir, resolver: resolver}
}

func (s *NICService) QueryNICs() ([]nic.Info, error) {
	infos := make([]nic.Info, 0, s.dir.Len())
	for i := 0; i < s.dir.Len(); i++ {
		info, err := s.dir.Info(nic.Index(i))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *NICService) QueryNIC(idx int) (*nic.Info, error) {
	info, err := s.dir.Info(nic.Index(idx))
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *NICService) Resolve(ctx context.Context, name string, ip netaddr.IPv4Addr) (*model.ARPResult, error) {
	n, err := nic.ByName(s.dir, name)
	if err != nil {
		return nil, err
	}

	hw, found, err := s.resolver.Resolve(ctx, n, ip)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"nic": name, "ip": ip}).Warn("Fail to resolve")
		return nil, err
	}
	return &model.ARPResult{NIC: name, IP: ip, HwAddr: hw, Found: found}, nil
}
