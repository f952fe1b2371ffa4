package engine

import "time"

// Chunk is one processed window of mono 16-bit PCM. PCM holds little-endian
// int16 samples, len(PCM) == Frames*2. Ownership transfers to the sink on
// delivery; the engine never touches it again.
type Chunk struct {
	PCM       []byte
	Frames    int
	Timestamp float64
}

// DecibelSample is the loudness of the chunk window it was derived from,
// clamped to [-120, 0].
type DecibelSample struct {
	Decibel   float64
	Timestamp float64
}

// Status reports a capture state transition. DeviceName is best-effort and
// empty when no device is active.
type Status struct {
	Active     bool
	Timestamp  float64
	DeviceName string
}

// Sink is the consumer boundary. The engine calls it from the capture thread
// while holding no locks; delivery is best-effort and a panicking sink never
// terminates capture. Implementations that need to block should buffer
// internally. A callback must not call Engine.Stop: Stop joins the capture
// goroutine that is executing the callback, which deadlocks. Stop from
// another goroutine instead.
type Sink interface {
	OnChunk(Chunk)
	OnStatus(Status)
	OnDecibel(DecibelSample)
}

// nowStamp returns the wall clock as fractional seconds, the timestamp format
// of every emitted event.
func nowStamp() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}
