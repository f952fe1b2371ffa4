// Package engine owns the capture lifecycle: the state machine behind
// start/stop/cleanup, the dedicated capture loop, and delivery of chunks and
// metering events to the sink boundary.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiuhuyn/desktop-audio-capture/internal/config"
	"github.com/hiuhuyn/desktop-audio-capture/internal/device"
	"github.com/hiuhuyn/desktop-audio-capture/internal/permissions"
)

const (
	// Pause after tearing down a previous session before opening a new one.
	cleanupSettle = 500 * time.Millisecond
	// Grace period for the capture thread to begin running before the
	// initial active status fires.
	startGrace = 200 * time.Millisecond
)

// Options configures a new Engine.
type Options struct {
	Opener device.Opener
	Logger zerolog.Logger
}

// Engine is the lifecycle controller. At most one capture session is active
// at a time; Start tears down any prior session first, so racing Start calls
// converge to a single session. All mutable shared state sits behind one
// mutex, held only for brief flag/sink accesses, never across a device read.
type Engine struct {
	opener  device.Opener
	retrier *device.Retrier
	log     zerolog.Logger

	settleDelay time.Duration
	graceDelay  time.Duration
	sleep       func(time.Duration)

	// startMu serializes Start calls end to end, so racing starts tear down
	// each other's sessions instead of leaking one.
	startMu sync.Mutex

	mu         sync.Mutex
	sink       Sink
	session    *captureSession
	deviceName string

	droppedChunks atomic.Uint64
}

// captureSession pairs an open device stream with its capture thread. It is
// owned exclusively by the Engine and destroyed on stop or read failure.
type captureSession struct {
	sess device.Session
	stop atomic.Bool
	done chan struct{}
}

func New(opts Options) *Engine {
	return &Engine{
		opener:      opts.Opener,
		retrier:     device.NewRetrier(opts.Logger),
		log:         opts.Logger.With().Str("component", "engine").Str("role", opts.Opener.Role()).Logger(),
		settleDelay: cleanupSettle,
		graceDelay:  startGrace,
		sleep:       time.Sleep,
	}
}

// Attach sets the sink and immediately replays the current capture state to
// it, so a late listener knows whether audio is flowing.
func (e *Engine) Attach(s Sink) {
	e.mu.Lock()
	e.sink = s
	active := e.session != nil
	name := e.deviceName
	e.mu.Unlock()

	e.emitStatus(active, name)
}

// Detach clears the sink. Capture continues; events are dropped.
func (e *Engine) Detach() {
	e.mu.Lock()
	e.sink = nil
	e.mu.Unlock()
}

// Start opens a device session and spawns the capture loop. Any session that
// is already running is cleanly torn down first. The config is clamped before
// use. On failure no resources are left behind and no status is emitted.
func (e *Engine) Start(cfg config.Capture) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.cleanupExisting()

	cfg.Normalize()

	wireless := device.IsWireless(e.opener.DefaultDeviceName())
	sess, desc, err := e.retrier.Open(e.opener, cfg, wireless)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to open capture stream")
		return err
	}

	cs := &captureSession{
		sess: sess,
		done: make(chan struct{}),
	}

	e.mu.Lock()
	e.session = cs
	e.deviceName = desc.Name
	e.mu.Unlock()

	e.log.Info().Str("device", desc.Name).Str("kind", desc.Kind).Int("rate", cfg.SampleRate).Msg("Capture started")
	// Announce before the loop can deliver its first chunk, so the active
	// status always precedes audio.
	e.emitStatus(true, desc.Name)

	loop := newCaptureLoop(e, cs, cfg)
	go loop.run()

	// Give the thread a moment to reach its first read before returning.
	e.sleep(e.graceDelay)
	return nil
}

// Stop signals the capture loop, waits for it to exit, and emits an inactive
// status. It returns false when no session is active, without touching any
// resources.
func (e *Engine) Stop() bool {
	cs := e.takeSession()
	if cs == nil {
		return false
	}

	cs.stop.Store(true)
	<-cs.done

	e.log.Info().Msg("Capture stopped")
	e.emitStatus(false, "")
	return true
}

// IsCapturing reports whether a session is currently active.
func (e *Engine) IsCapturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// DroppedChunks returns how many chunks were discarded because the device
// delivered an unsupported native format.
func (e *Engine) DroppedChunks() uint64 {
	return e.droppedChunks.Load()
}

// RequestPermissions asks the platform for capture permission. Desktop
// audio subsystems grant access implicitly, so this reports true unless the
// platform says otherwise.
func (e *Engine) RequestPermissions() bool {
	return permissions.Request()
}

// HasInputDevice reports whether a default capture device exists.
func (e *Engine) HasInputDevice() bool {
	return device.HasInputDevice()
}

// InputDevices enumerates capture-capable devices.
func (e *Engine) InputDevices() ([]device.Info, error) {
	return device.InputDevices()
}

// cleanupExisting tears down a previous session before a new Start: signal
// stop, join the thread, clear cached device state, then settle briefly.
func (e *Engine) cleanupExisting() {
	cs := e.takeSession()
	if cs == nil {
		return
	}

	e.log.Debug().Msg("Cleaning up existing capture session")
	cs.stop.Store(true)
	<-cs.done

	e.sleep(e.settleDelay)
}

// takeSession claims exclusive ownership of the active session, clearing the
// engine's cached state. Returns nil when idle.
func (e *Engine) takeSession() *captureSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := e.session
	e.session = nil
	e.deviceName = ""
	return cs
}

// sessionAborted is called by the capture loop after a fatal read error. The
// session may already have been claimed by Stop or a new Start, in which case
// that caller owns the status transition.
func (e *Engine) sessionAborted(cs *captureSession) {
	e.mu.Lock()
	current := e.session == cs
	if current {
		e.session = nil
		e.deviceName = ""
	}
	e.mu.Unlock()

	if current {
		e.log.Warn().Msg("Capture aborted by read failure")
		e.emitStatus(false, "")
	}
}

// deliver hands a chunk and its paired decibel sample to the sink. The lock
// covers only the sink fetch; a missing sink drops the events and a panicking
// sink is contained so the capture thread survives.
func (e *Engine) deliver(c Chunk, d DecibelSample) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Sink panicked during delivery")
		}
	}()
	sink.OnChunk(c)
	sink.OnDecibel(d)
}

func (e *Engine) emitStatus(active bool, deviceName string) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Sink panicked during status delivery")
		}
	}()
	sink.OnStatus(Status{Active: active, Timestamp: nowStamp(), DeviceName: deviceName})
}
