package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/errcode"
)

type QuerySessionsResp QueryPageResp[*model.SessionInfo]

type PopPacketsResp struct {
	Packets []model.CapturedPacket `json:"packets"`
}

type SessionAPI interface {
	CreateSession(*model.SessionSpec) (*model.SessionInfo, error)
	QuerySession(uint64) (*model.SessionInfo, error)
	QuerySessions(page, limit int) ([]*model.SessionInfo, int, error)
	StartSession(uint64) error
	StopSession(uint64) error
	DeleteSession(uint64) error
	PopPackets(id uint64, limit int) ([]model.CapturedPacket, error)
}

type httpSessionWrapper struct {
	impl SessionAPI
}

func (w httpSessionWrapper) AddSession(c *gin.Context) {
	var spec model.SessionSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		ErrorWithCode(c, errcode.CodeInvalid, errors.Wrap(err, "json.Unmarshal"))
		return
	}

	info, err := w.impl.CreateSession(&spec)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, info)
}

func (w httpSessionWrapper) QuerySession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	info, err := w.impl.QuerySession(id)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, info)
}

func (w httpSessionWrapper) QuerySessions(c *gin.Context) {
	p := NewPageFromRequest(c.Request)
	infos, total, err := w.impl.QuerySessions(p.Page, p.Limit)
	if err != nil {
		Error(c, err)
		return
	}
	p.Total = total
	Success(c, QuerySessionsResp{QueryPage: p, Data: infos})
}

func (w httpSessionWrapper) StartSession(c *gin.Context) {
	w.do(c, w.impl.StartSession)
}

func (w httpSessionWrapper) StopSession(c *gin.Context) {
	w.do(c, w.impl.StopSession)
}

func (w httpSessionWrapper) DeleteSession(c *gin.Context) {
	w.do(c, w.impl.DeleteSession)
}

func (w httpSessionWrapper) PopPackets(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		ErrorWithCode(c, errcode.CodeInvalid, err)
		return
	}

	packets, err := w.impl.PopPackets(id, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, PopPacketsResp{Packets: packets})
}

func (w httpSessionWrapper) do(c *gin.Context, fn func(uint64) error) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := fn(id); err != nil {
		Error(c, err)
		return
	}
	Success(c, id)
}

func sessionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil {
		ErrorWithCode(c, errcode.CodeInvalid, err)
		return 0, false
	}
	return id, true
}
