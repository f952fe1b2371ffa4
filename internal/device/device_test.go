package device

import (
	"testing"

	"github.com/hiuhuyn/desktop-audio-capture/internal/dsp"
)

func TestIsWireless(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Bluetooth Hands-Free Audio", true},
		{"WH-1000XM4 (Sony)", true},
		{"JBL TUNE 510BT", true},
		{"Realtek High Definition Audio", false},
		{"USB PnP Sound Device", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsWireless(tc.name); got != tc.want {
			t.Errorf("IsWireless(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestKindFor(t *testing.T) {
	if got := KindFor("Jabra Elite 75t"); got != "bluetooth" {
		t.Errorf("expected bluetooth, got %q", got)
	}
	if got := KindFor("Built-in Microphone"); got != "external" {
		t.Errorf("expected external, got %q", got)
	}
}

func TestFormatFrameSize(t *testing.T) {
	cases := []struct {
		format Format
		want   int
	}{
		{Format{SampleRate: 16000, Channels: 1, Encoding: dsp.S16LE}, 2},
		{Format{SampleRate: 48000, Channels: 2, Encoding: dsp.S16LE}, 4},
		{Format{SampleRate: 48000, Channels: 2, Encoding: dsp.F32LE}, 8},
		{Format{SampleRate: 44100, Channels: 1, Encoding: dsp.S24LE}, 3},
	}

	for _, tc := range cases {
		if got := tc.format.FrameSize(); got != tc.want {
			t.Errorf("%+v FrameSize() = %d, want %d", tc.format, got, tc.want)
		}
	}
}
