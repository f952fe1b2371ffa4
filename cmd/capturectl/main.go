package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/device"
	"github.com/hiuhuyn/desktop-audio-capture/internal/engine"
	"github.com/hiuhuyn/desktop-audio-capture/internal/logging"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
)

// logSink prints metering and status lines; chunk payloads are summarized,
// not dumped.
type logSink struct {
	log zerolog.Logger
}

func (s *logSink) OnChunk(c engine.Chunk) {
	s.log.Debug().Int("frames", c.Frames).Int("bytes", len(c.PCM)).Msg("Audio chunk")
}

func (s *logSink) OnStatus(st engine.Status) {
	s.log.Info().Bool("active", st.Active).Str("device", st.DeviceName).Msg("Capture status")
}

func (s *logSink) OnDecibel(d engine.DecibelSample) {
	s.log.Info().Float64("dB", d.Decibel).Msg("Level")
}

func main() {
	loopback := flag.Bool("loopback", false, "capture system output instead of the microphone")
	duration := flag.Duration("duration", 0, "stop after this long (0 = run until interrupted)")
	configPath := flag.String("config", config.DefaultPath(), "capture config file")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	listDevices := flag.Bool("devices", false, "list input devices and exit")
	flag.Parse()

	log := logging.NewWithLevel(*logLevel)
	log.Info().Str("version", Version).Msg("capturectl starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}

	var opener device.Opener
	if *loopback {
		opener = device.NewLoopback(log)
	} else {
		opener = device.NewMicrophone(log)
	}

	eng := engine.New(engine.Options{
		Opener: opener,
		Logger: log,
	})

	if *listDevices {
		devices, err := eng.InputDevices()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to enumerate devices")
		}
		for _, d := range devices {
			log.Info().Str("id", d.ID).Str("type", d.Type).Int("channels", d.ChannelCount).Bool("default", d.IsDefault).Msg(d.Name)
		}
		return
	}

	if !eng.RequestPermissions() {
		log.Fatal().Msg("Capture permission denied")
	}
	if !*loopback && !eng.HasInputDevice() {
		log.Fatal().Msg("No input device available")
	}

	eng.Attach(&logSink{log: log})

	if err := eng.Start(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to start capture")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *duration > 0 {
		select {
		case <-sigChan:
		case <-time.After(*duration):
		}
	} else {
		<-sigChan
	}

	log.Info().Msg("Shutting down...")
	if !eng.Stop() {
		log.Warn().Msg("Capture was not running")
	}
	if n := eng.DroppedChunks(); n > 0 {
		log.Warn().Uint64("chunks", n).Msg("Chunks dropped due to unsupported format")
	}
}
