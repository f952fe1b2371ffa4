package device

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
)

// Per-class open schedules. Wireless peripherals (Bluetooth headsets in
// particular) can take seconds to bring their capture endpoint up after the
// profile switch, so they get a longer settle wait and more attempts.
var (
	wirelessSettle = 1500 * time.Millisecond
	wiredSettle    = 300 * time.Millisecond

	wirelessDelays = []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2000 * time.Millisecond,
		2500 * time.Millisecond,
	}
	wiredDelays = []time.Duration{
		300 * time.Millisecond,
		600 * time.Millisecond,
		1000 * time.Millisecond,
	}
)

// Retrier opens a session through an Opener with the class-specific settle
// and backoff schedule. The sleep function is replaceable so tests can verify
// the schedule without waiting it out.
type Retrier struct {
	log   zerolog.Logger
	Sleep func(time.Duration)
}

func NewRetrier(log zerolog.Logger) *Retrier {
	return &Retrier{
		log:   log.With().Str("component", "device").Logger(),
		Sleep: time.Sleep,
	}
}

// Open attempts to acquire a session, retrying per the device class. It
// returns the last underlying error once all attempts are exhausted, with no
// partially-open resources left behind.
func (r *Retrier) Open(o Opener, cfg config.Capture, wireless bool) (Session, Descriptor, error) {
	settle := wiredSettle
	delays := wiredDelays
	if wireless {
		settle = wirelessSettle
		delays = wirelessDelays
	}
	attempts := len(delays)

	// Give the device a moment to become ready before the first attempt.
	r.Sleep(settle)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sess, desc, err := o.Open(cfg)
		if err == nil {
			if attempt > 1 {
				r.log.Info().Str("role", o.Role()).Int("attempt", attempt).Msg("Device opened after retry")
			}
			return sess, desc, nil
		}
		lastErr = err
		r.log.Warn().Err(err).Str("role", o.Role()).Int("attempt", attempt).Int("max", attempts).Msg("Device open failed")

		if attempt < attempts {
			r.Sleep(delays[attempt-1])
		}
	}

	return nil, Descriptor{}, fmt.Errorf("open %s stream after %d attempts: %w", o.Role(), attempts, lastErr)
}
