package device

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

// Callback packets queued between the miniaudio thread and Read before the
// bridge starts dropping.
const loopbackQueueDepth = 32

// Loopback opens system-output loopback sessions through miniaudio. Frames
// arrive in the render mix format (32-bit float); normalization to int16 is
// the capture loop's job, not the backend's.
type Loopback struct {
	log zerolog.Logger
}

func NewLoopback(log zerolog.Logger) *Loopback {
	return &Loopback{log: log.With().Str("component", "loopback").Logger()}
}

func (l *Loopback) Role() string { return "loopback" }

// ChunkFrames derives the output chunk size from ChunkDurationMs; this role
// honors the configured duration rather than a fixed frame count.
func (l *Loopback) ChunkFrames(cfg config.Capture) int {
	return cfg.SampleRate * cfg.ChunkDurationMs / 1000
}

// periodMs bounds the device callback cadence to 20-50 ms regardless of the
// requested chunk duration, keeping per-callback buffers small.
func periodMs(cfg config.Capture) int {
	ms := cfg.ChunkDurationMs
	if ms < 20 {
		ms = 20
	}
	if ms > 50 {
		ms = 50
	}
	return ms
}

// DefaultDeviceName reports the default render device's friendly name.
func (l *Loopback) DefaultDeviceName() string {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return ""
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return ""
	}
	for _, d := range devices {
		if d.IsDefault != 0 {
			return d.Name()
		}
	}
	if len(devices) > 0 {
		return devices[0].Name()
	}
	return ""
}

// Open acquires the default render endpoint in loopback mode.
func (l *Loopback) Open(cfg config.Capture) (Session, Descriptor, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		l.log.Trace().Str("miniaudio", message).Msg("Backend message")
	})
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("initialize miniaudio context: %w", err)
	}

	sess := &maSession{
		ctx:    ctx,
		dataCh: make(chan []byte, loopbackQueueDepth),
		stopCh: make(chan struct{}),
		format: Format{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Encoding:   dsp.F32LE,
		},
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(periodMs(cfg))

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if len(input) == 0 {
				return
			}
			// Copy out: miniaudio reuses the callback buffer.
			packet := make([]byte, len(input))
			copy(packet, input)
			select {
			case sess.dataCh <- packet:
			default:
				// Never block the audio thread; drop on a slow consumer.
			}
		},
		Stop: func() {
			sess.markStopped()
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, Descriptor{}, fmt.Errorf("init loopback device: %w", err)
	}
	sess.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, Descriptor{}, fmt.Errorf("start loopback device: %w", err)
	}

	name := l.DefaultDeviceName()
	if name == "" {
		name = "System Output"
	}
	l.log.Debug().Str("device", name).Int("rate", cfg.SampleRate).Int("channels", cfg.Channels).Msg("Loopback stream opened")

	return sess, Descriptor{Name: name, Kind: KindFor(name)}, nil
}

// maSession bridges miniaudio's callback delivery to the blocking Read the
// capture loop expects.
type maSession struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format Format

	dataCh  chan []byte
	pending []byte

	stopCh    chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func (s *maSession) Format() Format { return s.format }

// markStopped unblocks any Read waiting on the bridge. Called both from the
// miniaudio stop callback (device went away) and from Close.
func (s *maSession) markStopped() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *maSession) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case packet := <-s.dataCh:
			s.pending = packet
		case <-s.stopCh:
			// Drain whatever the callback queued before the stop.
			select {
			case packet := <-s.dataCh:
				s.pending = packet
			default:
				return 0, ErrSessionClosed
			}
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *maSession) Close() error {
	s.closeOnce.Do(func() {
		s.markStopped()
		if s.device != nil {
			s.device.Stop()
			s.device.Uninit()
			s.device = nil
		}
		if s.ctx != nil {
			s.ctx.Uninit()
			s.ctx.Free()
			s.ctx = nil
		}
	})
	return nil
}
