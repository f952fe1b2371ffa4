package device

import (
	"testing"

	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

// newBridgeSession builds a maSession with pre-queued callback packets and no
// backend attached, the way the miniaudio data callback would fill it.
func newBridgeSession(queued ...[]byte) *maSession {
	s := &maSession{
		dataCh: make(chan []byte, loopbackQueueDepth),
		stopCh: make(chan struct{}),
		format: Format{SampleRate: 16000, Channels: 1, Encoding: dsp.F32LE},
	}
	for _, p := range queued {
		s.dataCh <- p
	}
	return s
}

func TestLoopbackBridgePartialReads(t *testing.T) {
	s := newBridgeSession([]byte{1, 2, 3, 4, 5, 6})

	p := make([]byte, 4)
	n, err := s.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	if p[0] != 1 || p[3] != 4 {
		t.Fatalf("unexpected bytes %v", p[:n])
	}

	// The rest of the pending packet comes before the channel is consulted.
	n, err = s.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || p[0] != 5 || p[1] != 6 {
		t.Fatalf("expected remainder [5 6], got %v", p[:n])
	}
}

func TestLoopbackBridgeDrainsQueueAfterStop(t *testing.T) {
	s := newBridgeSession([]byte{1, 2}, []byte{3, 4})
	s.markStopped()

	p := make([]byte, 8)
	for i := 0; i < 2; i++ {
		n, err := s.Read(p)
		if err != nil {
			t.Fatalf("read %d: queued packets must drain after stop, got %v", i, err)
		}
		if n != 2 {
			t.Fatalf("read %d: expected 2 bytes, got %d", i, n)
		}
	}

	if _, err := s.Read(p); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed once drained, got %v", err)
	}
}

func TestLoopbackBridgeStopIsIdempotent(t *testing.T) {
	s := newBridgeSession()
	s.markStopped()
	s.markStopped() // second signal must not panic on the closed channel

	if _, err := s.Read(make([]byte, 4)); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestLoopbackBridgeCloseWithoutBackend(t *testing.T) {
	s := newBridgeSession([]byte{9, 9})

	// No device or context attached; Close must tolerate the partially
	// initialized state and stay idempotent.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Close stops the bridge; the queued packet still drains first.
	p := make([]byte, 4)
	n, err := s.Read(p)
	if err != nil || n != 2 {
		t.Fatalf("expected queued packet after Close, got n=%d err=%v", n, err)
	}
	if _, err := s.Read(p); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
