//go:build !darwin

// Package permissions answers the boundary's capture-permission request. The
// non-macOS audio subsystems this engine targets (WASAPI, PulseAudio) grant
// capture access at the system level, so there is nothing to prompt for;
// access failures surface later as device-open errors.
package permissions

// Request reports whether audio capture is permitted. Always true off macOS.
func Request() bool {
	return true
}
