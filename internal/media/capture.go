package media

import "context"

// Constraints describe the requested camera and microphone capture settings.
type Constraints struct {
	Width            int
	Height           int
	FacingMode       string
	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultConstraints returns the nominal capture settings used for study
// rooms: 640x480 front-facing video with echo-cancelled, noise-suppressed
// audio.
func DefaultConstraints() Constraints {
	return Constraints{
		Width:            640,
		Height:           480,
		FacingMode:       "user",
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Capture is the device acquisition collaborator. Implementations talk to the
// actual capture hardware; the controller only sees streams and tracks.
type Capture interface {
	// UserMedia acquires camera and/or microphone capture.
	UserMedia(ctx context.Context, video, audio bool, c Constraints) (*Stream, error)
	// DisplayMedia acquires screen capture, with audio where available.
	DisplayMedia(ctx context.Context) (*Stream, error)
	// VideoTrack acquires a single fresh camera track, used when video is
	// re-enabled on a stream that started audio-only.
	VideoTrack(ctx context.Context, c Constraints) (Track, error)
}
