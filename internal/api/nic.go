package api

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
)

type QueryNICsResp QueryPageResp[nic.Info]

type ResolveReq struct {
	NIC string           `json:"nic" binding:"required"`
	IP  netaddr.IPv4Addr `json:"ip"`
}

type NICAPI interface {
	QueryNICs() ([]nic.Info, error)
	QueryNIC(int) (*nic.Info, error)
	Resolve(context.Context, string, netaddr.IPv4Addr) (*model.ARPResult, error)
}

type httpNICWrapper struct {
	impl NICAPI
}

func (w httpNICWrapper) QueryNICs(c *gin.Context) {
	infos, err := w.impl.QueryNICs()
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, QueryNICsResp{QueryPage: QueryPage{Total: len(infos)}, Data: infos})
}

func (w httpNICWrapper) QueryNIC(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		ErrorWithCode(c, errcode.CodeInvalid, err)
		return
	}

	info, err := w.impl.QueryNIC(idx)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, info)
}

func (w httpNICWrapper) Resolve(c *gin.Context) {
	var req ResolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithCode(c, errcode.CodeInvalid, errors.Wrap(err, "json.Unmarshal"))
		return
	}
	if req.IP.IsZero() {
		ErrorWithCode(c, errcode.CodeInvalid, errors.New("ip is required"))
		return
	}

	res, err := w.impl.Resolve(c.Request.Context(), req.NIC, req.IP)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, res)
}
