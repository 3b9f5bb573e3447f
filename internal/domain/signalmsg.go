package domain

import "github.com/pion/webrtc/v3"

type SignalType string

const (
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
)

// SignalMessage is relayed between peers over the room's signaling channel.
// To is optional; an empty To means the message is for every subscriber.
type SignalMessage struct {
	Type      SignalType                 `json:"type"`
	From      string                     `json:"from"`
	To        string                     `json:"to,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// AddressedTo reports whether selfID should handle the message. Signaling is
// broadcast-with-addressing: receivers discard messages meant for someone else.
func (m SignalMessage) AddressedTo(selfID string) bool {
	return m.To == "" || m.To == selfID
}
