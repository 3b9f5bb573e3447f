package rtc

import (
	"context"
	"errors"

	"github.com/luciandrev/estudia_rooms/internal/media"
)

// SampleCapture is a media.Capture implementation producing sample-fed local
// tracks. The embedding application owns the actual encoder pipeline and
// writes samples into the tracks it gets back; the constraints only describe
// what that pipeline should produce.
type SampleCapture struct{}

func NewSampleCapture() *SampleCapture {
	return &SampleCapture{}
}

func (c *SampleCapture) UserMedia(ctx context.Context, video, audio bool, _ media.Constraints) (*media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !video && !audio {
		return nil, errors.New("no capture requested")
	}

	var tracks []media.Track
	if video {
		t, err := NewLocalTrack(media.TrackVideo)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if audio {
		t, err := NewLocalTrack(media.TrackAudio)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}

	return media.NewStream(tracks...), nil
}

func (c *SampleCapture) DisplayMedia(ctx context.Context) (*media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	video, err := NewLocalTrack(media.TrackVideo)
	if err != nil {
		return nil, err
	}
	audio, err := NewLocalTrack(media.TrackAudio)
	if err != nil {
		return nil, err
	}

	return media.NewStream(video, audio), nil
}

func (c *SampleCapture) VideoTrack(ctx context.Context, _ media.Constraints) (media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewLocalTrack(media.TrackVideo)
}
