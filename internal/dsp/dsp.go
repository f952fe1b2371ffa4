// Package dsp holds the pure sample math used by the capture loop: channel
// downmix with gain, input volume scaling, RMS loudness metering, and
// conversion from native device formats to 16-bit signed PCM. Everything here
// is deterministic and free of shared state, so the capture thread calls it
// without locking.
package dsp

import (
	"errors"
	"math"
)

// Encoding identifies the native sample format a device delivers.
type Encoding int

const (
	S16LE Encoding = iota // 16-bit signed little-endian PCM
	F32LE                 // 32-bit IEEE float little-endian
	S24LE                 // 24-bit signed little-endian PCM
)

// ErrUnsupportedFormat is returned by ToInt16 for encodings outside the
// conversion table. Callers discard the affected chunk rather than emitting
// corrupt audio.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// BytesPerSample returns the on-wire width of one sample, or 0 for an
// unknown encoding.
func (e Encoding) BytesPerSample() int {
	switch e {
	case S16LE:
		return 2
	case F32LE:
		return 4
	case S24LE:
		return 3
	}
	return 0
}

func (e Encoding) String() string {
	switch e {
	case S16LE:
		return "s16le"
	case F32LE:
		return "f32le"
	case S24LE:
		return "s24le"
	}
	return "unknown"
}

// Downmix reduces interleaved multi-channel int16 samples to mono, applying a
// linear gain boost. Mono input is gain-scaled only; stereo frames are
// averaged. Results saturate at the int16 range instead of wrapping.
func Downmix(in []int16, channels int, gain float64) []int16 {
	if channels < 1 {
		channels = 1
	}
	frames := len(in) / channels
	out := make([]int16, frames)

	if channels == 1 {
		for i := 0; i < frames; i++ {
			out[i] = clampSample(float64(in[i]) * gain)
		}
		return out
	}

	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(in[i*channels+ch])
		}
		out[i] = clampSample(sum / float64(channels) * gain)
	}
	return out
}

// ApplyVolume scales samples in place by a linear factor. Callers skip the
// call entirely when volume >= 1.0.
func ApplyVolume(samples []int16, volume float64) {
	for i, s := range samples {
		samples[i] = int16(float64(s) * volume)
	}
}

// DecibelFloor is the metering floor, returned for empty or silent windows.
const DecibelFloor = -120.0

// Decibel computes the RMS loudness of a sample window relative to full
// scale: 20*log10(RMS/32767), clamped to [-120, 0].
func Decibel(samples []int16) float64 {
	if len(samples) == 0 {
		return DecibelFloor
	}

	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms <= 0 {
		return DecibelFloor
	}

	db := 20.0 * math.Log10(rms/32767.0)
	if db < DecibelFloor {
		return DecibelFloor
	}
	if db > 0 {
		return 0
	}
	return db
}

// ToInt16 converts raw little-endian sample bytes in the given encoding to
// int16 samples. Trailing bytes short of a whole sample are ignored. Float
// samples are clamped to [-1, 1] before scaling; 24-bit samples are
// sign-extended from bit 23 and shifted down to 16 bits.
func ToInt16(raw []byte, enc Encoding) ([]int16, error) {
	switch enc {
	case S16LE:
		n := len(raw) / 2
		out := make([]int16, n)
		for i := 0; i < n; i++ {
			out[i] = int16(raw[2*i]) | int16(raw[2*i+1])<<8
		}
		return out, nil

	case F32LE:
		n := len(raw) / 4
		out := make([]int16, n)
		for i := 0; i < n; i++ {
			bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 |
				uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			f := math.Float32frombits(bits)
			if f > 1.0 {
				f = 1.0
			}
			if f < -1.0 {
				f = -1.0
			}
			out[i] = int16(f * 32767.0)
		}
		return out, nil

	case S24LE:
		n := len(raw) / 3
		out := make([]int16, n)
		for i := 0; i < n; i++ {
			s := int32(raw[3*i]) | int32(raw[3*i+1])<<8 | int32(raw[3*i+2])<<16
			if s&0x800000 != 0 {
				s |= ^int32(0xFFFFFF) // sign extend from bit 23
			}
			out[i] = int16(s >> 8)
		}
		return out, nil
	}

	return nil, ErrUnsupportedFormat
}

// Int16ToBytes serializes samples as little-endian PCM, the wire format of
// every emitted audio chunk.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
