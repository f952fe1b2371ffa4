package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// Defaults applied when a field is missing, wrong-typed, or out of range.
const (
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultBitsPerSample   = 16
	DefaultChunkDurationMs = 1000
	DefaultGainBoost       = 2.5
	DefaultInputVolume     = 1.0
)

// Capture holds the per-session capture parameters. All numeric fields are
// clamped by Normalize before a session uses them; callers never see an error
// for an out-of-range value.
type Capture struct {
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	BitsPerSample   int     `json:"bits_per_sample"`
	ChunkDurationMs int     `json:"chunk_duration_ms"`
	GainBoost       float64 `json:"gain_boost"`
	InputVolume     float64 `json:"input_volume"`
	DeviceName      string  `json:"device_name"`
}

// Default returns a Capture with every field at its documented default.
func Default() Capture {
	return Capture{
		SampleRate:      DefaultSampleRate,
		Channels:        DefaultChannels,
		BitsPerSample:   DefaultBitsPerSample,
		ChunkDurationMs: DefaultChunkDurationMs,
		GainBoost:       DefaultGainBoost,
		InputVolume:     DefaultInputVolume,
	}
}

// Normalize clamps all fields into their valid ranges. Bit depth is always
// forced to 16 regardless of what the caller asked for.
func (c *Capture) Normalize() {
	if c.SampleRate < 8000 {
		c.SampleRate = 8000
	}
	if c.Channels < 1 {
		c.Channels = 1
	}
	if c.Channels > 2 {
		c.Channels = 2
	}
	c.BitsPerSample = 16
	if c.ChunkDurationMs < 10 {
		c.ChunkDurationMs = 10
	}
	c.GainBoost = clampFloat(c.GainBoost, 0.1, 10.0)
	c.InputVolume = clampFloat(c.InputVolume, 0.0, 1.0)
}

// FromMap builds a Capture from a loosely-typed argument map, as delivered by
// a host boundary. Unrecognized keys and wrong-typed values are ignored in
// favor of defaults; the result is already normalized.
func FromMap(args map[string]any) Capture {
	cfg := Default()
	if v, ok := intArg(args, "sampleRate"); ok {
		cfg.SampleRate = v
	}
	if v, ok := intArg(args, "channels"); ok {
		cfg.Channels = v
	}
	// Both spellings appear in the wild.
	if v, ok := intArg(args, "bitDepth"); ok {
		cfg.BitsPerSample = v
	} else if v, ok := intArg(args, "bitsPerSample"); ok {
		cfg.BitsPerSample = v
	}
	if v, ok := intArg(args, "chunkDurationMs"); ok {
		cfg.ChunkDurationMs = v
	}
	if v, ok := floatArg(args, "gainBoost"); ok {
		cfg.GainBoost = v
	}
	if v, ok := floatArg(args, "inputVolume"); ok {
		cfg.InputVolume = v
	}
	if v, ok := args["deviceName"].(string); ok {
		cfg.DeviceName = v
	}
	cfg.Normalize()
	return cfg
}

// Load reads a capture config from path, overlaying it on defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (Capture, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c Capture) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultPath returns the platform-specific config file path.
func DefaultPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "desktop-audio-capture", "config.json")
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		// JSON decoders deliver numbers as float64.
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
