package media

import (
	"context"
	"log/slog"
	"sync"

	"github.com/luciandrev/estudia_rooms/lib/logger/sl"
)

// TrackSwitcher swaps the outbound video track on every open peer connection
// without a renegotiation round-trip. The peer connection manager implements
// it.
type TrackSwitcher interface {
	ReplaceOutboundVideo(t Track) error
}

// Controller owns the local capture state for one room session: the camera
// and microphone stream, the optional screen-capture stream, and the
// "displayed" stream currently sent to peers.
type Controller struct {
	capture  Capture
	switcher TrackSwitcher
	log      *slog.Logger

	mu           sync.RWMutex
	local        *Stream
	screen       *Stream
	displayed    *Stream
	audioEnabled bool
	videoEnabled bool
	sharing      bool
	onShareEnded func()
}

func NewController(capture Capture, switcher TrackSwitcher, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		capture:  capture,
		switcher: switcher,
		log:      log,
	}
}

// SetOnShareEnded registers a callback fired after a screen share stops
// because the capture source itself ended, as opposed to an explicit
// StopScreenShare call.
func (c *Controller) SetOnShareEnded(fn func()) {
	c.mu.Lock()
	c.onShareEnded = fn
	c.mu.Unlock()
}

// AcquireLocalMedia requests camera/microphone capture. If combined
// acquisition fails while video was requested it falls back to audio-only;
// if every attempt fails it returns nil and both enabled flags stay false.
func (c *Controller) AcquireLocalMedia(ctx context.Context, video, audio bool) (*Stream, error) {
	stream, err := c.capture.UserMedia(ctx, video, audio, DefaultConstraints())
	if err != nil && video {
		c.log.Warn("media acquisition failed, retrying audio-only", sl.Err(err))
		stream, err = c.capture.UserMedia(ctx, false, true, DefaultConstraints())
		if err == nil {
			video = false
			audio = true
		}
	}
	if err != nil {
		c.log.Error("audio acquisition failed", sl.Err(err))
		return nil, err
	}

	c.mu.Lock()
	c.local = stream
	c.displayed = stream
	c.audioEnabled = audio
	c.videoEnabled = video
	c.mu.Unlock()

	return stream, nil
}

// ToggleAudio flips the enabled flag on every audio track of the local stream
// in place and returns the new state. It never re-acquires.
func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.local == nil {
		return c.audioEnabled
	}
	for _, t := range c.local.AudioTracks() {
		t.SetEnabled(!t.Enabled())
	}
	c.audioEnabled = !c.audioEnabled
	return c.audioEnabled
}

// ToggleVideo disables existing video tracks when enabled, re-enables them
// when present, and otherwise re-acquires a fresh camera track and swaps it
// onto every open peer connection via track replacement.
func (c *Controller) ToggleVideo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.local == nil {
		return nil
	}

	if c.videoEnabled {
		for _, t := range c.local.VideoTracks() {
			t.SetEnabled(false)
		}
		c.videoEnabled = false
		return nil
	}

	if tracks := c.local.VideoTracks(); len(tracks) > 0 {
		for _, t := range tracks {
			t.SetEnabled(true)
		}
		c.videoEnabled = true
		return nil
	}

	// Started audio-only: acquire a fresh camera track and push it to every
	// connection without a new offer/answer cycle.
	track, err := c.capture.VideoTrack(ctx, DefaultConstraints())
	if err != nil {
		c.log.Error("failed to re-acquire video", sl.Err(err))
		return err
	}

	c.local.AddTrack(track)
	if err := c.switcher.ReplaceOutboundVideo(track); err != nil {
		c.log.Error("failed to replace outbound video", sl.Err(err))
	}
	c.displayed = c.local
	c.videoEnabled = true
	return nil
}

// StartScreenShare acquires display capture and makes it the displayed
// stream. Failures are reported as false, never as a panic or user-facing
// error.
func (c *Controller) StartScreenShare(ctx context.Context) bool {
	c.mu.RLock()
	sharing := c.sharing
	c.mu.RUnlock()
	if sharing {
		return true
	}

	stream, err := c.capture.DisplayMedia(ctx)
	if err != nil {
		c.log.Warn("screen capture failed", sl.Err(err))
		return false
	}

	c.mu.Lock()
	if c.sharing {
		c.mu.Unlock()
		stream.StopAll()
		return true
	}
	c.screen = stream
	c.displayed = stream
	c.sharing = true
	videoTracks := stream.VideoTracks()
	c.mu.Unlock()

	if len(videoTracks) > 0 {
		track := videoTracks[0]
		if err := c.switcher.ReplaceOutboundVideo(track); err != nil {
			c.log.Error("failed to replace outbound video", sl.Err(err))
		}
		// Covers the native "Stop sharing" affordance.
		track.OnEnded(func() {
			c.StopScreenShare()
			c.mu.RLock()
			fn := c.onShareEnded
			c.mu.RUnlock()
			if fn != nil {
				fn()
			}
		})
	}

	return true
}

// StopScreenShare stops screen capture and reverts the displayed stream to
// the camera. Safe to call when no share is active.
func (c *Controller) StopScreenShare() {
	c.mu.Lock()
	if !c.sharing && c.screen == nil {
		c.mu.Unlock()
		return
	}

	if c.screen != nil {
		c.screen.StopAll()
		c.screen = nil
	}
	c.sharing = false

	local := c.local
	var cameraTrack Track
	if local != nil {
		c.displayed = local
		if tracks := local.VideoTracks(); len(tracks) > 0 {
			cameraTrack = tracks[0]
		}
	}
	c.mu.Unlock()

	if cameraTrack != nil {
		if err := c.switcher.ReplaceOutboundVideo(cameraTrack); err != nil {
			c.log.Error("failed to restore camera track", sl.Err(err))
		}
	}
}

// StopAll stops every local and screen capture track and clears the media
// state. Each step is guarded so it is safe after a partial acquisition.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.local != nil {
		c.local.StopAll()
		c.local = nil
	}
	if c.screen != nil {
		c.screen.StopAll()
		c.screen = nil
	}
	c.displayed = nil
	c.sharing = false
	c.audioEnabled = false
	c.videoEnabled = false
}

func (c *Controller) Local() *Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local
}

func (c *Controller) Screen() *Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screen
}

// Displayed returns the stream currently sent as the outbound video source,
// camera or screen.
func (c *Controller) Displayed() *Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayed
}

func (c *Controller) IsAudioEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioEnabled
}

func (c *Controller) IsVideoEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoEnabled
}

func (c *Controller) IsScreenSharing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sharing
}
