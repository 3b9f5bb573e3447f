package rtc

import (
	"github.com/pion/webrtc/v3"

	"github.com/luciandrev/estudia_rooms/internal/media"
)

// RemoteTrack is a media track received from a remote peer.
type RemoteTrack interface {
	ID() string
	Kind() media.TrackKind
}

// PeerConnection is the negotiation primitive for one remote peer. It mirrors
// the subset of the underlying WebRTC API the manager needs, so tests can
// substitute a fake.
type PeerConnection interface {
	CreateOffer() (*webrtc.SessionDescription, error)
	CreateAnswer() (*webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	AddTrack(t media.Track) error
	// ReplaceVideoTrack swaps the outbound video sender's track, adding a
	// sender when none exists yet. No renegotiation is triggered.
	ReplaceVideoTrack(t media.Track) error

	OnTrack(fn func(t RemoteTrack))
	OnICECandidate(fn func(candidate webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(state webrtc.PeerConnectionState))

	Close() error
}

// Factory creates peer connections. One factory serves a whole room session.
type Factory interface {
	NewPeerConnection() (PeerConnection, error)
}
