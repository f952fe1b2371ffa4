package engine

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/device"
	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

// Nap between reads that return no frames, so an idle device does not spin
// the thread.
const idleNap = 10 * time.Millisecond

// captureLoop runs on its own OS thread, pulling raw frames from the device
// session, normalizing them to mono int16, and handing finished chunks to the
// engine for delivery. States: idle until run, running while reading,
// draining once a stop or read error is observed, stopped after the session
// is closed.
type captureLoop struct {
	eng *Engine
	cs  *captureSession
	cfg config.Capture
	log zerolog.Logger

	chunkFrames int
}

func newCaptureLoop(e *Engine, cs *captureSession, cfg config.Capture) *captureLoop {
	return &captureLoop{
		eng:         e,
		cs:          cs,
		cfg:         cfg,
		log:         e.log.With().Str("component", "loop").Logger(),
		chunkFrames: e.opener.ChunkFrames(cfg),
	}
}

func (l *captureLoop) run() {
	// The audio backends expect their stream calls on a stable thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.cs.done)

	sess := l.cs.sess
	format := sess.Format()
	frameSize := format.FrameSize()
	if frameSize <= 0 {
		// Unknown sample width; assume 16-bit so the raw stream still moves
		// and the conversion step can reject it chunk by chunk.
		frameSize = 2 * format.Channels
	}
	chunkBytes := l.chunkFrames * frameSize

	scratch := make([]byte, chunkBytes)
	buf := make([]byte, 0, 2*chunkBytes)

	fatal := false
	for {
		if l.cs.stop.Load() {
			break
		}

		n, err := sess.Read(scratch)
		if err != nil {
			// Read failures after start are fatal to this session only;
			// a stop-triggered close is not an error.
			if !l.cs.stop.Load() {
				l.log.Error().Err(err).Msg("Device read failed, ending capture")
				fatal = true
			}
			break
		}
		if l.cs.stop.Load() {
			break
		}
		if n == 0 {
			l.eng.sleep(idleNap)
			continue
		}

		buf = append(buf, scratch[:n]...)

		// Emit every whole chunk accumulated so far, carrying the partial
		// remainder into the next iteration.
		for len(buf) >= chunkBytes && !l.cs.stop.Load() {
			if !l.processChunk(buf[:chunkBytes], format) {
				// Unsupported native format: discard, do not emit.
				buf = buf[:0]
				break
			}
			buf = append(buf[:0], buf[chunkBytes:]...)
		}
	}

	sess.Close()

	if fatal {
		l.eng.sessionAborted(l.cs)
	}
}

// processChunk converts one chunk's worth of raw frames to mono 16-bit PCM,
// meters it, and delivers the chunk/decibel pair. Returns false when the
// native format is not convertible.
func (l *captureLoop) processChunk(raw []byte, format device.Format) bool {
	samples, err := dsp.ToInt16(raw, format.Encoding)
	if err != nil {
		dropped := l.eng.droppedChunks.Add(1)
		l.log.Warn().Str("encoding", format.Encoding.String()).Uint64("dropped", dropped).Msg("Unsupported sample format, chunk discarded")
		return false
	}

	if l.cfg.InputVolume < 1.0 {
		dsp.ApplyVolume(samples, l.cfg.InputVolume)
	}

	mono := dsp.Downmix(samples, format.Channels, l.cfg.GainBoost)
	db := dsp.Decibel(mono)

	ts := nowStamp()
	l.eng.deliver(
		Chunk{PCM: dsp.Int16ToBytes(mono), Frames: len(mono), Timestamp: ts},
		DecibelSample{Decibel: db, Timestamp: ts},
	)
	return true
}
