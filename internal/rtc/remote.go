package rtc

import (
	"sync"

	"github.com/luciandrev/estudia_rooms/internal/media"
)

// RemoteStream collects the media tracks received from one remote peer.
type RemoteStream struct {
	PeerID string

	mu     sync.RWMutex
	tracks []RemoteTrack
}

func newRemoteStream(peerID string) *RemoteStream {
	return &RemoteStream{PeerID: peerID}
}

func (s *RemoteStream) addTrack(t RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

func (s *RemoteStream) Tracks() []RemoteTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RemoteTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *RemoteStream) TracksOfKind(kind media.TrackKind) []RemoteTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RemoteTrack
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
