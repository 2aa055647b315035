package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

func waitSession(t *testing.T, s *Session) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "capture loop did not exit")
	return err
}

func waitEntered(t *testing.T, b *fakeBackend) {
	t.Helper()
	select {
	case <-b.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not call the backend")
	}
}

func TestSessionOpenFailure(t *testing.T) {
	b := newFakeBackend()
	b.openErr = errors.New("no such device")

	s, err := NewLiveSession(b, "nope0")
	assert.Nil(t, s)
	assert.True(t, errcode.Is(err, errcode.CodeSession))
	assert.Contains(t, err.Error(), "no such device")

	opens, closes := b.counts()
	assert.Equal(t, 0, opens)
	assert.Equal(t, 0, closes)
}

func TestSessionDefaults(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, "eth0", cfg.Source)
	assert.Equal(t, DefaultSnaplen, cfg.Snaplen)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.False(t, cfg.Promisc)
	assert.Equal(t, ModeLive, s.Mode())
	assert.True(t, s.HandleOpen())
	assert.False(t, s.Capturing())

	// no loop yet, Done is already closed
	assert.NoError(t, waitSession(t, s))

	s2, err := NewOfflineSession(b, "dump.pcap", WithSnaplen(65535), WithPromisc(true), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, s2.Mode())
	assert.Equal(t, 65535, s2.Config().Snaplen)
	assert.True(t, s2.Config().Promisc)
	assert.Greater(t, s2.ID(), s.ID())
}

func TestSessionStopIdle(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.SetFilter("arp", true, netaddr.MustParseIPv4Addr("255.255.255.0")))
	require.NoError(t, s.OpenDumpFile("out.pcap"))

	require.NoError(t, s.Stop())
	opens, closes := b.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, closes)
	assert.True(t, s.HandleOpen())
	assert.False(t, s.DelayedStop())
	assert.Nil(t, s.Filter())
	assert.Empty(t, s.DumpFile())
	assert.True(t, b.dumpers[0].closed)

	// reusable after stop
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	assert.NoError(t, waitSession(t, s))
}

func TestSessionDisposeIdle(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	s.Dispose()
	_, closes := b.counts()
	assert.Equal(t, 1, closes)
	assert.True(t, s.Disposed())
	assert.False(t, s.HandleOpen())
	assert.Equal(t, ModeNone, s.Mode())

	assert.True(t, errcode.Is(s.Start(), errcode.CodeSession))
	assert.True(t, errcode.Is(s.SetFilter("arp", false, 0), errcode.CodeSession))
	assert.True(t, errcode.Is(s.OpenDumpFile("x.pcap"), errcode.CodeSession))
	assert.True(t, errcode.Is(s.Inject([]byte{1}), errcode.CodeSession))

	// no-ops once disposed
	assert.NoError(t, s.Stop())
	s.Dispose()
	opens, closes := b.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestSessionDelayedStop(t *testing.T) {
	b := newFakeBackend().gated()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	require.NoError(t, s.Start())
	waitEntered(t, b)

	require.NoError(t, s.Stop())
	assert.False(t, s.Capturing())
	assert.True(t, s.DelayedStop())
	_, closes := b.counts()
	assert.Equal(t, 0, closes, "handle closed while the loop is running")

	// a second stop while delayed changes nothing
	require.NoError(t, s.Stop())
	_, closes = b.counts()
	assert.Equal(t, 0, closes)

	b.release()
	require.NoError(t, waitSession(t, s))

	opens, closes := b.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, s.DelayedStop())
	assert.True(t, s.HandleOpen())
	assert.False(t, b.handles[1].closed)

	// restart on the reopened handle, then dispose from inside the loop
	require.NoError(t, s.Start())
	waitEntered(t, b)
	s.Dispose()
	assert.True(t, s.DelayedDispose())
	assert.False(t, s.Disposed())
	b.release()
	require.NoError(t, waitSession(t, s))
	assert.True(t, s.Disposed())
	assert.False(t, s.DelayedDispose())
}

func TestSessionDelayedStopThenDispose(t *testing.T) {
	b := newFakeBackend().gated()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	require.NoError(t, s.Start())
	waitEntered(t, b)
	require.NoError(t, s.Stop())
	s.Dispose()
	assert.True(t, s.DelayedStop())
	assert.True(t, s.DelayedDispose())

	b.release()
	require.NoError(t, waitSession(t, s))

	// stop reopened a handle, dispose released it
	opens, closes := b.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes)
	assert.True(t, b.handles[0].closed)
	assert.True(t, b.handles[1].closed)
	assert.True(t, s.Disposed())
	assert.False(t, s.HandleOpen())
}

func TestSessionStartTwice(t *testing.T) {
	b := newFakeBackend().gated()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	require.NoError(t, s.Start())
	waitEntered(t, b)
	assert.True(t, errcode.Is(s.Start(), errcode.CodeSession))

	// still refused while a delayed stop is pending
	require.NoError(t, s.Stop())
	assert.True(t, errcode.Is(s.Start(), errcode.CodeSession))

	b.release()
	require.NoError(t, waitSession(t, s))
	s.Dispose()
}

func TestCaptureLoopPackets(t *testing.T) {
	b := newFakeBackend(
		fakeStep{res: ResultPacket, pkt: []byte{1}},
		fakeStep{res: ResultTimeout},
		fakeStep{res: ResultPacket, pkt: []byte{2, 2}},
		fakeStep{res: ResultPacket, pkt: []byte{3, 3, 3}},
	)
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	for i := 1; i <= 3; i++ {
		pkt := s.Queue().Pop()
		assert.Len(t, pkt.Data, i)
		assert.Equal(t, byte(i), pkt.Data[0])
	}

	require.NoError(t, s.Stop())
	require.NoError(t, waitSession(t, s))

	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.RxPackets)
	assert.Equal(t, uint64(6), stats.RxBytes)
	assert.Equal(t, uint64(0), stats.RxErrors)
}

func TestCaptureLoopOfflineEOF(t *testing.T) {
	b := newFakeBackend(
		fakeStep{res: ResultPacket, pkt: []byte{1}},
		fakeStep{res: ResultPacket, pkt: []byte{2}},
		fakeStep{res: ResultEOF},
	)
	s, err := NewOfflineSession(b, "replay.pcap")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.NoError(t, waitSession(t, s))
	assert.False(t, s.Capturing())
	assert.Equal(t, 2, s.Queue().Size())
	assert.True(t, s.HandleOpen())
}

func TestCaptureLoopLiveEOF(t *testing.T) {
	b := newFakeBackend(
		fakeStep{res: ResultEOF},
		fakeStep{res: ResultEOF},
		fakeStep{res: ResultPacket, pkt: []byte{9}},
	)
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	pkt := s.Queue().Pop()
	assert.Equal(t, []byte{9}, pkt.Data)
	assert.True(t, s.Capturing())

	s.Dispose()
	require.NoError(t, waitSession(t, s))
	assert.True(t, s.Disposed())
}

func TestCaptureLoopError(t *testing.T) {
	b := newFakeBackend(fakeStep{res: ResultError, err: errors.New("device went down")})
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	err = waitSession(t, s)
	assert.True(t, errcode.Is(err, errcode.CodeSession))
	assert.Contains(t, err.Error(), "device went down")
	assert.False(t, s.Capturing())
	assert.Equal(t, uint64(1), s.Stats().RxErrors)

	// the loop may be started again after a failure
	require.NoError(t, s.Start())
	assert.NoError(t, s.Err())
	s.Dispose()
	require.NoError(t, waitSession(t, s))
}

func TestCaptureLoopBadHandle(t *testing.T) {
	b := newFakeBackend(fakeStep{res: ResultBadHandle})
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	err = waitSession(t, s)
	assert.True(t, errcode.Is(err, errcode.CodeSession))
	assert.Contains(t, err.Error(), "invalid capture handle")
	assert.False(t, s.Capturing())
}

func TestSessionDumpFile(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	assert.True(t, errcode.Is(s.DumpPacket(b.packet([]byte{1})), errcode.CodeSession))
	assert.True(t, errcode.Is(s.CloseDumpFile(), errcode.CodeSession))

	require.NoError(t, s.OpenDumpFile("a.pcap"))
	assert.Equal(t, "a.pcap", s.DumpFile())
	assert.True(t, errcode.Is(s.OpenDumpFile("b.pcap"), errcode.CodeSession))

	require.NoError(t, s.DumpPacket(b.packet([]byte{1, 2})))
	require.NoError(t, s.CloseDumpFile())
	assert.True(t, b.dumpers[0].closed)
	assert.Len(t, b.dumpers[0].packets, 1)
	assert.Empty(t, s.DumpFile())

	require.NoError(t, s.OpenDumpFile("b.pcap"))
	s.Dispose()
	assert.True(t, b.dumpers[1].closed)
}

func TestCaptureLoopAutoDump(t *testing.T) {
	b := newFakeBackend(
		fakeStep{res: ResultPacket, pkt: []byte{1}},
		fakeStep{res: ResultPacket, pkt: []byte{2}},
	)
	s, err := NewLiveSession(b, "eth0", WithAutoDump())
	require.NoError(t, err)
	require.NoError(t, s.OpenDumpFile("auto.pcap"))
	require.NoError(t, s.Start())

	s.Queue().Pop()
	s.Queue().Pop()
	s.Dispose()
	require.NoError(t, waitSession(t, s))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Len(t, b.dumpers[0].packets, 2)
	assert.True(t, b.dumpers[0].closed)
}

func TestSessionSetFilter(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.NoError(t, s.SetFilter("icmp", false, 0))
	assert.Equal(t, "icmp", s.Filter().Expr)
	require.NoError(t, s.SetFilter("arp", true, 0))
	assert.Equal(t, "arp", s.Filter().Expr)

	err = s.SetFilter("bad filter", false, 0)
	assert.True(t, errcode.Is(err, errcode.CodeSession))
	assert.Equal(t, "arp", s.Filter().Expr)

	s.Dispose()
	require.NoError(t, waitSession(t, s))
}

func TestSessionInject(t *testing.T) {
	b := newFakeBackend()
	s, err := NewLiveSession(b, "eth0")
	require.NoError(t, err)

	require.NoError(t, s.Inject([]byte{1, 2, 3}))
	assert.Len(t, b.injected, 1)
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TxPackets)
	assert.Equal(t, uint64(3), stats.TxBytes)
}

func TestModeResultString(t *testing.T) {
	assert.Equal(t, "live", ModeLive.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
	assert.Equal(t, "eof", ResultEOF.String())
	assert.Equal(t, "bad handle", ResultBadHandle.String())
}
