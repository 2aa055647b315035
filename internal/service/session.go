package service

import (
	"encoding/hex"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zxhio/netdev/internal/config"
	"github.com/zxhio/netdev/internal/model"
	"github.com/zxhio/netdev/pkg/capture"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/fastpkt"
	"github.com/zxhio/netdev/pkg/netaddr"
	"github.com/zxhio/netdev/pkg/nic"
	"github.com/zxhio/netdev/pkg/utils"
)

// SessionService keeps the capture sessions created through the API.
type SessionService struct {
	backend capture.Backend
	dir     nic.Directory
	cfg     config.CaptureConfig

	mu       *sync.RWMutex
	sessions []*capture.Session // ordered by id
}

func NewSessionService(b capture.Backend, dir nic.Directory, cfg config.CaptureConfig) *SessionService {
	return &SessionService{
		backend: b,
		dir:     dir,
		cfg:     cfg,
		mu:      &sync.RWMutex{},
	}
}

func (s *SessionService) CreateSession(spec *model.SessionSpec) (*model.SessionInfo, error) {
	l := logrus.WithFields(logrus.Fields{"nic": spec.NIC, "file": spec.File, "filter": spec.Filter})
	l.Info("Creating session")

	if (spec.NIC == "") == (spec.File == "") {
		return nil, errcode.New(errcode.CodeInvalid, "exactly one of nic and file is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.MaxSessions {
		return nil, errcode.New(errcode.CodeInvalid, "too many sessions, max %d", s.cfg.MaxSessions)
	}

	opts := []capture.SessionOpt{
		capture.WithSnaplen(valueOr(spec.Snaplen, s.cfg.Snaplen)),
		capture.WithPromisc(spec.Promisc || s.cfg.Promisc),
		capture.WithTimeout(valueOr(time.Duration(spec.TimeoutMS)*time.Millisecond, s.cfg.Timeout)),
	}
	if spec.AutoDump {
		opts = append(opts, capture.WithAutoDump())
	}

	var (
		sess *capture.Session
		err  error
	)
	if spec.NIC != "" {
		if _, err := nic.Lookup(s.dir, spec.NIC); err != nil {
			return nil, err
		}
		sess, err = capture.NewLiveSession(s.backend, spec.NIC, opts...)
	} else {
		var name string
		name, err = s.replayFile(spec.File)
		if err != nil {
			return nil, err
		}
		sess, err = capture.NewOfflineSession(s.backend, name, opts...)
	}
	if err != nil {
		l.WithError(err).Error("Fail to create session")
		return nil, err
	}

	if err := s.setupSession(sess, spec); err != nil {
		sess.Dispose()
		l.WithError(err).Error("Fail to set up session")
		return nil, err
	}
	s.sessions = append(s.sessions, sess)

	l.WithField("id", sess.ID()).Info("Created session")
	return sessionInfo(sess), nil
}

func (s *SessionService) setupSession(sess *capture.Session, spec *model.SessionSpec) error {
	if spec.Filter != "" {
		if err := sess.SetFilter(spec.Filter, spec.Optimize, s.netmask(spec.NIC)); err != nil {
			return err
		}
	}
	if spec.DumpFile != "" {
		// Dump files always land in the dump directory
		name := filepath.Join(s.cfg.DumpDir, filepath.Base(spec.DumpFile))
		if err := sess.OpenDumpFile(name); err != nil {
			return err
		}
	}
	return nil
}

// replayFile confines file to the replay directory.
func (s *SessionService) replayFile(file string) (string, error) {
	base := filepath.Base(file)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", errcode.New(errcode.CodeInvalid, "invalid file %q", file)
	}
	return filepath.Join(s.cfg.ReplayDir, base), nil
}

func (s *SessionService) netmask(name string) (mask netaddr.IPv4Addr) {
	if name == "" {
		return
	}
	idx, err := nic.Lookup(s.dir, name)
	if err != nil {
		return
	}
	info, err := s.dir.Info(idx)
	if err != nil {
		return
	}
	return info.Netmask
}

func (s *SessionService) QuerySession(id uint64) (*model.SessionInfo, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

func (s *SessionService) QuerySessions(page, limit int) ([]*model.SessionInfo, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions, total := utils.LimitPageSlice(s.sessions, page, limit)
	infos := make([]*model.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sessionInfo(sess))
	}
	return infos, total, nil
}

func (s *SessionService) StartSession(id uint64) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	return sess.Start()
}

func (s *SessionService) StopSession(id uint64) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	return sess.Stop()
}

// DeleteSession disposes the session and forgets it. A running capture
// releases its handle when the loop exits.
func (s *SessionService) DeleteSession(id uint64) error {
	logrus.WithField("id", id).Info("Deleting session")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sessions, func(sess *capture.Session) bool { return sess.ID() == id })
	if idx == -1 {
		return errcode.New(errcode.CodeNotExist, "session: %d", id)
	}
	s.sessions[idx].Dispose()
	s.sessions = slices.Delete(s.sessions, idx, idx+1)

	logrus.WithField("id", id).Info("Deleted session")
	return nil
}

// PopPackets takes up to limit queued packets without blocking.
func (s *SessionService) PopPackets(id uint64, limit int) ([]model.CapturedPacket, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	limit = max(limit, 1)
	packets := make([]model.CapturedPacket, 0, min(limit, sess.Queue().Size()))
	for len(packets) < limit {
		pkt, ok := sess.Queue().TryPop()
		if !ok {
			break
		}
		packets = append(packets, model.CapturedPacket{
			Timestamp:  pkt.Timestamp,
			Length:     pkt.Length,
			CaptureLen: pkt.CaptureLen(),
			Summary:    fastpkt.Format(pkt.Data, fastpkt.WithFormatEthernet()),
			Hex:        hex.EncodeToString(pkt.Data),
		})
	}
	return packets, nil
}

// Close disposes every session and waits for their loops to exit.
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Dispose()
	}
	for _, sess := range sessions {
		<-sess.Done()
	}
	logrus.WithField("num", len(sessions)).Info("Closed sessions")
}

func (s *SessionService) session(id uint64) (*capture.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.sessions, func(sess *capture.Session) bool { return sess.ID() == id })
	if idx == -1 {
		return nil, errcode.New(errcode.CodeNotExist, "session: %d", id)
	}
	return s.sessions[idx], nil
}

func sessionInfo(sess *capture.Session) *model.SessionInfo {
	info := &model.SessionInfo{
		ID:             sess.ID(),
		Source:         sess.Source(),
		Mode:           sess.Mode().String(),
		Capturing:      sess.Capturing(),
		HandleOpen:     sess.HandleOpen(),
		Disposed:       sess.Disposed(),
		DelayedStop:    sess.DelayedStop(),
		DelayedDispose: sess.DelayedDispose(),
		DumpFile:       sess.DumpFile(),
		Queued:         sess.Queue().Size(),
		Stats:          sess.Stats(),
	}
	if f := sess.Filter(); f != nil {
		info.Filter = f.Expr
	}
	if err := sess.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

func valueOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
