package device

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

type flakyOpener struct {
	failures int
	calls    int
}

func (f *flakyOpener) Role() string                            { return "microphone" }
func (f *flakyOpener) ChunkFrames(cfg config.Capture) int      { return 4096 }
func (f *flakyOpener) DefaultDeviceName() string               { return "Fake Device" }
func (f *flakyOpener) Open(cfg config.Capture) (Session, Descriptor, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, Descriptor{}, errors.New("device busy")
	}
	return &nullSession{}, Descriptor{Name: "Fake Device", Kind: "external"}, nil
}

type nullSession struct{}

func (nullSession) Read(p []byte) (int, error) { return 0, ErrSessionClosed }
func (nullSession) Format() Format {
	return Format{SampleRate: 16000, Channels: 1, Encoding: dsp.S16LE}
}
func (nullSession) Close() error { return nil }

func newTestRetrier() (*Retrier, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	r := NewRetrier(zerolog.Nop())
	r.Sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return r, sleeps
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	r, sleeps := newTestRetrier()
	opener := &flakyOpener{failures: 2}

	sess, desc, err := r.Open(opener, config.Default(), false)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	defer sess.Close()

	if opener.calls != 3 {
		t.Errorf("expected 3 open attempts, got %d", opener.calls)
	}
	if desc.Name != "Fake Device" {
		t.Errorf("unexpected descriptor %+v", desc)
	}

	// Settle wait plus exactly two backoff sleeps of 0.3s and 0.6s.
	want := []time.Duration{
		300 * time.Millisecond,
		300 * time.Millisecond,
		600 * time.Millisecond,
	}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, *sleeps)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], (*sleeps)[i])
		}
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	r, sleeps := newTestRetrier()
	opener := &flakyOpener{failures: 100}

	_, _, err := r.Open(opener, config.Default(), false)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if opener.calls != 3 {
		t.Errorf("wired class should stop after 3 attempts, got %d", opener.calls)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 3 {
		t.Errorf("expected settle + 2 backoff sleeps, got %v", *sleeps)
	}
}

func TestRetryWirelessSchedule(t *testing.T) {
	r, sleeps := newTestRetrier()
	opener := &flakyOpener{failures: 100}

	_, _, err := r.Open(opener, config.Default(), true)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if opener.calls != 5 {
		t.Errorf("wireless class should make 5 attempts, got %d", opener.calls)
	}

	want := []time.Duration{
		1500 * time.Millisecond,
		500 * time.Millisecond,
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2000 * time.Millisecond,
	}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, *sleeps)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], (*sleeps)[i])
		}
	}
}

func TestRetryNoBackoffOnFirstTrySuccess(t *testing.T) {
	r, sleeps := newTestRetrier()
	opener := &flakyOpener{failures: 0}

	sess, _, err := r.Open(opener, config.Default(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if len(*sleeps) != 1 {
		t.Errorf("expected only the settle sleep, got %v", *sleeps)
	}
}
