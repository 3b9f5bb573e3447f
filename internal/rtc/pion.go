package rtc

import (
	"errors"

	"github.com/pion/webrtc/v3"

	"github.com/luciandrev/estudia_rooms/internal/media"
)

var ErrNotWebRTCTrack = errors.New("track cannot be attached to a webrtc connection")

// LocalTrackProvider is implemented by tracks that can feed a pion peer
// connection.
type LocalTrackProvider interface {
	Local() webrtc.TrackLocal
}

// PionFactory builds pion-backed peer connections sharing one ICE server
// configuration.
type PionFactory struct {
	config webrtc.Configuration
}

func NewPionFactory(stunServers []string) *PionFactory {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return &PionFactory{
		config: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
		},
	}
}

func (f *PionFactory) NewPeerConnection() (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionConn{pc: pc}, nil
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (c *pionConn) CreateAnswer() (*webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) AddTrack(t media.Track) error {
	provider, ok := t.(LocalTrackProvider)
	if !ok {
		return ErrNotWebRTCTrack
	}

	sender, err := c.pc.AddTrack(provider.Local())
	if err != nil {
		return err
	}

	// Drain RTCP so the interceptor pipeline keeps flowing.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	return nil
}

func (c *pionConn) ReplaceVideoTrack(t media.Track) error {
	provider, ok := t.(LocalTrackProvider)
	if !ok {
		return ErrNotWebRTCTrack
	}

	for _, sender := range c.pc.GetSenders() {
		track := sender.Track()
		if track != nil && track.Kind() == webrtc.RTPCodecTypeVideo {
			return sender.ReplaceTrack(provider.Local())
		}
	}

	return c.AddTrack(t)
}

func (c *pionConn) OnTrack(fn func(t RemoteTrack)) {
	c.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(&pionRemoteTrack{tr: tr})
	})
}

func (c *pionConn) OnICECandidate(fn func(candidate webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(state webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

type pionRemoteTrack struct {
	tr *webrtc.TrackRemote
}

func (t *pionRemoteTrack) ID() string {
	return t.tr.ID()
}

func (t *pionRemoteTrack) Kind() media.TrackKind {
	if t.tr.Kind() == webrtc.RTPCodecTypeAudio {
		return media.TrackAudio
	}
	return media.TrackVideo
}
