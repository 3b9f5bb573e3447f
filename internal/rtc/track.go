package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"

	"github.com/luciandrev/estudia_rooms/internal/media"
)

var ErrTrackStopped = errors.New("track stopped")

// LocalTrack is a sample-fed outbound track. The capture pipeline writes
// encoded samples into it; disabling the track drops writes so the peer hears
// or sees nothing while the source keeps running.
type LocalTrack struct {
	kind  media.TrackKind
	track *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	ended   bool
	onEnded func()
}

func NewLocalTrack(kind media.TrackKind) (*LocalTrack, error) {
	var caps webrtc.RTPCodecCapability
	switch kind {
	case media.TrackAudio:
		caps = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	case media.TrackVideo:
		caps = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	default:
		return nil, fmt.Errorf("unsupported track kind %q", kind)
	}

	id := uuid.New().String()
	track, err := webrtc.NewTrackLocalStaticSample(caps, id, "estudia-"+string(kind))
	if err != nil {
		return nil, err
	}

	return &LocalTrack{
		kind:    kind,
		track:   track,
		enabled: true,
	}, nil
}

func (t *LocalTrack) ID() string {
	return t.track.ID()
}

func (t *LocalTrack) Kind() media.TrackKind {
	return t.kind
}

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

// End marks the capture source as ended on its own and fires the end-of-
// stream hook once. Stop never triggers it.
func (t *LocalTrack) End() {
	t.mu.Lock()
	if t.ended || t.stopped {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fn := t.onEnded
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// WriteSample pushes one encoded sample to the peer connections the track is
// attached to. Disabled tracks drop the sample.
func (t *LocalTrack) WriteSample(sample pionmedia.Sample) error {
	t.mu.Lock()
	if t.stopped || t.ended {
		t.mu.Unlock()
		return ErrTrackStopped
	}
	enabled := t.enabled
	t.mu.Unlock()

	if !enabled {
		return nil
	}
	return t.track.WriteSample(sample)
}

// Local exposes the underlying webrtc track for attachment to a pion
// connection.
func (t *LocalTrack) Local() webrtc.TrackLocal {
	return t.track
}
