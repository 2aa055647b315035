package capture

import "github.com/zxhio/netdev/pkg/errcode"

// loop asks the backend for one packet per iteration while the session is
// capturing. On exit it resolves a delayed stop, then a delayed dispose.
func (s *Session) loop(done chan struct{}) {
	s.log.Debug("Capture loop running")

	for {
		h, ok := s.loopHandle()
		if !ok {
			break
		}
		res, err := s.backend.CaptureOne(h, s.staging)
		if !s.handleResult(res, err) {
			break
		}
	}
	s.finishLoop(done)
}

func (s *Session) loopHandle() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.capturing
}

// handleResult reports whether the loop keeps going.
func (s *Session) handleResult(res Result, err error) bool {
	switch res {
	case ResultPacket:
		s.forward()
		return true
	case ResultTimeout:
		s.mu.Lock()
		s.stats.RxIOs++
		s.mu.Unlock()
		return true
	case ResultEOF:
		// End of file only ends offline replays, live handles keep reading
		if s.cfg.Mode != ModeOffline {
			return true
		}
		s.log.Info("Reached end of capture file")
		s.setCapturing(false)
		return false
	case ResultBadHandle:
		s.fail(errcode.Wrap(errcode.CodeSession, errOrResult(err, res), "session %d: invalid capture handle", s.id))
		return false
	default:
		s.fail(errcode.Wrap(errcode.CodeSession, errOrResult(err, res), "session %d: capture", s.id))
		return false
	}
}

// forward moves packets from the backend side into the consumer queue,
// teeing them to the dump file when auto dump is on.
func (s *Session) forward() {
	for {
		pkt, ok := s.staging.TryPop()
		if !ok {
			return
		}

		s.mu.Lock()
		s.stats.RxIOs++
		s.stats.RxPackets++
		s.stats.RxBytes += uint64(len(pkt.Data))
		if s.opts.autoDump && s.dumper != nil {
			if err := s.dumpLocked(pkt); err != nil {
				s.stats.RxErrors++
				s.log.WithError(err).Warn("Fail to dump packet")
			}
		}
		s.mu.Unlock()

		s.queue.Push(pkt)
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.capturing = false
	s.err = err
	s.stats.RxErrors++
	s.mu.Unlock()
	s.log.WithError(err).Error("Capture loop failed")
}

func (s *Session) finishLoop(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.looping = false
	if s.delayedStop {
		if err := s.stopLocked(); err != nil && s.err == nil {
			s.err = err
		}
	}
	if s.delayedDispose {
		s.disposeLocked()
	}
	close(done)
	s.log.Debug("Capture loop exited")
}

func errOrResult(err error, res Result) error {
	if err != nil {
		return err
	}
	return errcode.New(errcode.CodeSession, "backend returned %s", res)
}
