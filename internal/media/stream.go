package media

import (
	"sync"

	"github.com/google/uuid"
)

// Stream is a bundle of local tracks, holding at most one audio and one video
// track in practice.
type Stream struct {
	mu     sync.RWMutex
	id     string
	tracks []Track
}

func NewStream(tracks ...Track) *Stream {
	return &Stream{
		id:     uuid.New().String(),
		tracks: tracks,
	}
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) AudioTracks() []Track {
	return s.tracksOfKind(TrackAudio)
}

func (s *Stream) VideoTracks() []Track {
	return s.tracksOfKind(TrackVideo)
}

func (s *Stream) AddTrack(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

// StopAll stops every track in the stream.
func (s *Stream) StopAll() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

func (s *Stream) tracksOfKind(kind TrackKind) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
