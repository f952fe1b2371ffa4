// Package device acquires and releases capture streams against the OS audio
// subsystem. Two backends implement the same Session capability: a portaudio
// microphone session and a miniaudio (malgo) loopback session for system
// output. Open-retry policy and device classification are shared and
// backend-agnostic.
package device

import (
	"errors"
	"strings"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

// ErrSessionClosed is returned by Read after Close, or after the OS stops the
// underlying stream (device unplugged, endpoint invalidated).
var ErrSessionClosed = errors.New("capture session closed")

// Format describes the native frames a session delivers through Read.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   dsp.Encoding
}

// FrameSize returns the byte width of one interleaved frame.
func (f Format) FrameSize() int {
	return f.Channels * f.Encoding.BytesPerSample()
}

// Session is an open capture stream. Read blocks until at least one frame is
// available and fills p with up to len(p) bytes of raw interleaved samples in
// the session's native format; it never fabricates data and returns an error
// on stream failure. Close is idempotent and safe on a partially-initialized
// session. The session is owned by exactly one capture loop at a time.
type Session interface {
	Read(p []byte) (int, error)
	Format() Format
	Close() error
}

// Descriptor is best-effort information about the active device, used for
// status events and retry-class selection only.
type Descriptor struct {
	Name string
	Kind string // "bluetooth" or "external"
}

// Opener acquires sessions for one capture role.
type Opener interface {
	// Role names the capture role ("microphone" or "loopback").
	Role() string
	// Open requests a capture stream for the given (already normalized)
	// config. It performs a single attempt; retry is layered on top by
	// Retrier.Open.
	Open(cfg config.Capture) (Session, Descriptor, error)
	// ChunkFrames returns the number of output frames per emitted chunk for
	// this role. The microphone role uses a fixed frame count; the loopback
	// role derives it from ChunkDurationMs. Roles never mix both modes
	// within a session.
	ChunkFrames(cfg config.Capture) int
	// DefaultDeviceName reports the friendly name of the device Open would
	// use, or "" when none is known. Used for the wireless heuristic before
	// the stream exists.
	DefaultDeviceName() string
}

// Info describes one enumerable input device at the control boundary.
type Info struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ChannelCount int    `json:"channelCount"`
	IsDefault    bool   `json:"isDefault"`
}

var wirelessKeywords = []string{
	"bluetooth", "airpods", "beats", "jabra", "sony", "bose", "jbl",
}

// IsWireless reports whether a device friendly name looks like a wireless or
// Bluetooth peripheral. Heuristic only; it selects the slower retry schedule
// and the "bluetooth" descriptor kind, never correctness-critical behavior.
func IsWireless(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range wirelessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// KindFor returns the descriptor kind for a device name.
func KindFor(name string) string {
	if IsWireless(name) {
		return "bluetooth"
	}
	return "external"
}
