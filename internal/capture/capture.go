package capture

import "errors"

var (
	// ErrNotPermitted is returned by Permitted when capture cannot be used
	ErrNotPermitted = errors.New("microphone capture is not permitted")
	// ErrPortAudioUnavailable is returned when the binary was built without
	// the portaudio tag
	ErrPortAudioUnavailable = errors.New("built without portaudio support (rebuild with -tags portaudio)")
)

// Device records audio from the microphone
type Device interface {
	// Permitted reports whether capture can start at all
	Permitted() error
	// Start begins recording; name labels the saved audio. onComplete is
	// called exactly once, from any goroutine, with mono samples normalized
	// to [-1, 1] or an error.
	Start(name string, onComplete func(samples []float32, err error)) (Handle, error)
}

// Handle controls one running capture
type Handle interface {
	// Stop ends recording early. The completion callback still fires with
	// whatever was captured.
	Stop()
}
