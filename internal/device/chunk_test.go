package device

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
)

func TestMicrophoneChunkFramesFixed(t *testing.T) {
	m := NewMicrophone(zerolog.Nop())

	cfg := config.Default()
	cfg.ChunkDurationMs = 50
	if got := m.ChunkFrames(cfg); got != 4096 {
		t.Errorf("microphone role must ignore chunk duration, got %d frames", got)
	}
}

func TestLoopbackChunkFramesDerived(t *testing.T) {
	l := NewLoopback(zerolog.Nop())

	cases := []struct {
		rate, ms, want int
	}{
		{16000, 1000, 16000},
		{48000, 250, 12000},
		{8000, 10, 80},
	}
	for _, tc := range cases {
		cfg := config.Default()
		cfg.SampleRate = tc.rate
		cfg.ChunkDurationMs = tc.ms
		if got := l.ChunkFrames(cfg); got != tc.want {
			t.Errorf("rate %d, %d ms: expected %d frames, got %d", tc.rate, tc.ms, tc.want, got)
		}
	}
}

func TestLoopbackPeriodClamped(t *testing.T) {
	cases := []struct{ ms, want int }{
		{10, 20},
		{35, 35},
		{1000, 50},
	}
	for _, tc := range cases {
		cfg := config.Default()
		cfg.ChunkDurationMs = tc.ms
		if got := periodMs(cfg); got != tc.want {
			t.Errorf("%d ms: expected period %d, got %d", tc.ms, tc.want, got)
		}
	}
}
