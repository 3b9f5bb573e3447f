package rtc_test

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/media"
	"github.com/luciandrev/estudia_rooms/internal/rtc"
)

// fakeConn is a scriptable PeerConnection that records every call and lets
// tests fire the registered handlers.
type fakeConn struct {
	mu         sync.Mutex
	localDesc  *webrtc.SessionDescription
	remoteDesc *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []media.Track
	replaced   []media.Track
	closed     bool

	offerErr  error
	answerErr error

	onTrack func(rtc.RemoteTrack)
	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
}

func (c *fakeConn) CreateOffer() (*webrtc.SessionDescription, error) {
	if c.offerErr != nil {
		return nil, c.offerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (c *fakeConn) CreateAnswer() (*webrtc.SessionDescription, error) {
	if c.answerErr != nil {
		return nil, c.answerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localDesc = &desc
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteDesc = &desc
	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *fakeConn) AddTrack(t media.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t)
	return nil
}

func (c *fakeConn) ReplaceVideoTrack(t media.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, t)
	return nil
}

func (c *fakeConn) OnTrack(fn func(t rtc.RemoteTrack)) { c.onTrack = fn }

func (c *fakeConn) OnICECandidate(fn func(candidate webrtc.ICECandidateInit)) { c.onICE = fn }

func (c *fakeConn) OnConnectionStateChange(fn func(state webrtc.PeerConnectionState)) {
	c.onState = fn
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) replacedTracks() []media.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]media.Track, len(c.replaced))
	copy(out, c.replaced)
	return out
}

type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error

	// Copied onto every new connection.
	offerErr error
}

func (f *fakeFactory) NewPeerConnection() (rtc.PeerConnection, error) {
	f.mu.Lock()
	offerErr := f.offerErr
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{offerErr: offerErr}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	return conn, nil
}

func (f *fakeFactory) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.SignalMessage
}

func (s *fakeSender) Send(_ context.Context, msg domain.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []domain.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignalMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSender) ofType(t domain.SignalType) []domain.SignalMessage {
	var out []domain.SignalMessage
	for _, msg := range s.messages() {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

type fakeLocalTrack struct {
	mu      sync.Mutex
	id      string
	kind    media.TrackKind
	enabled bool
	stopped bool
	onEnded func()
}

func newFakeLocalTrack(id string, kind media.TrackKind) *fakeLocalTrack {
	return &fakeLocalTrack{id: id, kind: kind, enabled: true}
}

func (t *fakeLocalTrack) ID() string            { return t.id }
func (t *fakeLocalTrack) Kind() media.TrackKind { return t.kind }

func (t *fakeLocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeLocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeLocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeLocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

type fakeRemoteTrack struct {
	id   string
	kind media.TrackKind
}

func (t *fakeRemoteTrack) ID() string            { return t.id }
func (t *fakeRemoteTrack) Kind() media.TrackKind { return t.kind }
