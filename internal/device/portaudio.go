package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

// micChunkFrames is the fixed output chunk size for the microphone role;
// ChunkDurationMs is ignored for this backend.
const micChunkFrames = 4096

// micReadFrames is the stream's natural read granularity.
const micReadFrames = 512

// Microphone opens portaudio input-device sessions delivering S16LE frames.
type Microphone struct {
	log zerolog.Logger
}

func NewMicrophone(log zerolog.Logger) *Microphone {
	return &Microphone{log: log.With().Str("component", "mic").Logger()}
}

func (m *Microphone) Role() string { return "microphone" }

func (m *Microphone) ChunkFrames(cfg config.Capture) int { return micChunkFrames }

// DefaultDeviceName reports the default input device's friendly name.
func (m *Microphone) DefaultDeviceName() string {
	if err := portaudio.Initialize(); err != nil {
		return ""
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return ""
	}
	return dev.Name
}

// Open acquires an input stream at the configured rate and channel count.
// When the named device is unavailable it falls back to the default input
// source rather than failing.
func (m *Microphone) Open(cfg config.Capture) (Session, Descriptor, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, Descriptor{}, fmt.Errorf("initialize portaudio: %w", err)
	}

	dev, err := m.pickDevice(cfg.DeviceName)
	if err != nil {
		portaudio.Terminate()
		return nil, Descriptor{}, err
	}

	channels := cfg.Channels
	if dev.MaxInputChannels < channels {
		channels = dev.MaxInputChannels
	}

	buffer := make([]int16, micReadFrames*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: micReadFrames,
	}, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, Descriptor{}, fmt.Errorf("open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, Descriptor{}, fmt.Errorf("start audio stream: %w", err)
	}

	m.log.Debug().Str("device", dev.Name).Int("channels", channels).Int("rate", cfg.SampleRate).Msg("Microphone stream opened")

	sess := &paSession{
		stream: stream,
		buffer: buffer,
		format: Format{
			SampleRate: cfg.SampleRate,
			Channels:   channels,
			Encoding:   dsp.S16LE,
		},
	}
	desc := Descriptor{Name: dev.Name, Kind: KindFor(dev.Name)}
	return sess, desc, nil
}

// pickDevice resolves the role-preferred device by name, falling back to the
// default input source when it is missing or has no input channels.
func (m *Microphone) pickDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		devices, err := portaudio.Devices()
		if err == nil {
			for _, d := range devices {
				if d.Name == name && d.MaxInputChannels > 0 {
					return d, nil
				}
			}
		}
		m.log.Warn().Str("device", name).Msg("Preferred input device unavailable, using default")
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("get default input device: %w", err)
	}
	return dev, nil
}

// InputDevices enumerates capture-capable devices for the control boundary.
func InputDevices() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defaultDev, _ := portaudio.DefaultInputDevice()

	result := make([]Info, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Info{
			ID:           d.Name,
			Name:         d.Name,
			Type:         KindFor(d.Name),
			ChannelCount: d.MaxInputChannels,
			IsDefault:    isDefaultInput(d, defaultDev),
		})
	}
	return result, nil
}

// isDefaultInput matches by device index rather than pointer identity, which
// would depend on the binding caching its DeviceInfo values.
func isDefaultInput(d, def *portaudio.DeviceInfo) bool {
	return def != nil && d.Index == def.Index
}

// HasInputDevice reports whether a default capture device exists.
func HasInputDevice() bool {
	if err := portaudio.Initialize(); err != nil {
		return false
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	return err == nil && dev != nil
}

// paSession wraps a blocking portaudio stream. Each underlying stream read
// yields micReadFrames frames; Read hands them out in caller-sized pieces so
// the loop's scratch buffer can be any size.
type paSession struct {
	stream *portaudio.Stream
	buffer []int16
	format Format

	pending   []byte
	closeOnce sync.Once
	closed    bool
	closeErr  error
}

func (s *paSession) Format() Format { return s.format }

func (s *paSession) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	if len(s.pending) == 0 {
		if err := s.stream.Read(); err != nil {
			return 0, fmt.Errorf("read audio stream: %w", err)
		}
		s.pending = dsp.Int16ToBytes(s.buffer)
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *paSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if s.stream != nil {
			s.stream.Stop()
			s.closeErr = s.stream.Close()
		}
		portaudio.Terminate()
	})
	return s.closeErr
}
