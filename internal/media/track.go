package media

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is a single local capture track. Disabling a track mutes it in place
// without releasing the underlying source; Stop releases the source for good.
type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	// Stop releases the capture source. It does not fire the OnEnded hook;
	// that hook is reserved for the source ending on its own.
	Stop()
	// OnEnded registers a hook invoked once when the capture source ends
	// outside our control (e.g. the native "Stop sharing" affordance).
	OnEnded(fn func())
}
