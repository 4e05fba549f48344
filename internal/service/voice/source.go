package voice

import "errors"

// ErrMicrophoneAccess marks capture failures the user has to resolve:
// missing device or denied permission. Callers surface it and reset any
// listening UI state.
var ErrMicrophoneAccess = errors.New("microphone access denied or unavailable")

// CaptureSource produces fixed-size frames of float32 samples in [-1, 1].
// Exactly one Start/Stop cycle is active at a time; the voice client owns
// the lifecycle.
type CaptureSource interface {
	// Start begins delivering frames of frameSamples mono samples at
	// sampleRate until Stop. Frames arrive in capture order on a single
	// goroutine. Failures to open the device wrap ErrMicrophoneAccess.
	Start(sampleRate, frameSamples int, onFrame func(samples []float32)) error

	// Stop halts capture and releases the device. Idempotent.
	Stop() error
}
