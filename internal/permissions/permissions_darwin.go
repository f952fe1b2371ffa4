//go:build darwin

// Package permissions answers the boundary's capture-permission request. On
// macOS microphone access is gated by TCC, so the engine has to check the
// AVFoundation authorization status and trigger the system prompt when the
// user has not decided yet.
package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

const (
	permissionNotDetermined = 0
	permissionRestricted    = 1
	permissionDenied        = 2
	permissionAuthorized    = 3
)

// Request reports whether microphone capture is authorized. When the status
// is still undetermined it triggers the system dialog; the completion is
// asynchronous, so the call reports false and the user retries once the
// prompt is answered.
func Request() bool {
	status := int(C.checkMicrophonePermission())
	if status == permissionAuthorized {
		return true
	}
	if status == permissionNotDetermined {
		C.requestMicrophonePermission()
	}
	return false
}
