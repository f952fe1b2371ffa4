package device

import (
	"testing"

	"github.com/gordonklaus/portaudio"
)

func TestIsDefaultInputMatchesByIndex(t *testing.T) {
	def := &portaudio.DeviceInfo{Index: 2, Name: "Built-in Microphone"}
	// Distinct values for the same device, as if enumerated separately.
	same := &portaudio.DeviceInfo{Index: 2, Name: "Built-in Microphone"}
	other := &portaudio.DeviceInfo{Index: 5, Name: "USB PnP Sound Device"}

	if !isDefaultInput(same, def) {
		t.Error("equal indices should match regardless of pointer identity")
	}
	if isDefaultInput(other, def) {
		t.Error("different indices must not match")
	}
	if isDefaultInput(same, nil) {
		t.Error("nil default device matches nothing")
	}
}
