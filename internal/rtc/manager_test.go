package rtc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/media"
	"github.com/luciandrev/estudia_rooms/internal/rtc"
)

func newManager(selfID string, cfg rtc.Config) (*rtc.Manager, *fakeFactory, *fakeSender) {
	factory := &fakeFactory{}
	sender := &fakeSender{}
	return rtc.NewManager(selfID, factory, sender, cfg, nil), factory, sender
}

func TestManager_CreateOffer(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	local := media.NewStream(newFakeLocalTrack("a1", media.TrackAudio), newFakeLocalTrack("v1", media.TrackVideo))
	require.NoError(t, m.CreateOffer(context.Background(), "bob", local))

	offers := sender.ofType(domain.SignalOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "alice", offers[0].From)
	assert.Equal(t, "bob", offers[0].To)
	require.NotNil(t, offers[0].SDP)

	state, ok := m.State("bob")
	require.True(t, ok)
	assert.Equal(t, rtc.StateNegotiating, state)

	conn := factory.last()
	require.NotNil(t, conn)
	assert.Len(t, conn.tracks, 2)
}

func TestManager_CreateOffer_ExistingPeerIsLeftAlone(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))

	assert.Equal(t, 1, factory.count())
	assert.Len(t, sender.ofType(domain.SignalOffer), 1)
	assert.Equal(t, 1, m.Len())
}

func TestManager_CreateOffer_FailureLeavesPeerRetryable(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})
	factory.offerErr = errors.New("no codecs")

	require.Error(t, m.CreateOffer(context.Background(), "bob", nil))
	assert.Equal(t, 0, m.Len())
	assert.True(t, factory.last().isClosed())

	// The failed attempt must not block a later offer to the same peer.
	factory.offerErr = nil
	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	assert.Len(t, sender.ofType(domain.SignalOffer), 1)
	assert.Equal(t, 2, factory.count())
	assert.Equal(t, 1, m.Len())
}

func TestManager_HandleOffer_AnswersUnknownPeer(t *testing.T) {
	m, _, sender := newManager("bob", rtc.Config{NegotiationTimeout: -1})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	require.NoError(t, m.HandleOffer(context.Background(), "alice", offer, nil))

	answers := sender.ofType(domain.SignalAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "alice", answers[0].To)

	state, ok := m.State("alice")
	require.True(t, ok)
	assert.Equal(t, rtc.StateNegotiating, state)
}

func TestManager_HandleOffer_GlareSmallerIDYields(t *testing.T) {
	// "alice" < "bob": alice must drop her own pending offer and answer.
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	first := factory.last()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	require.NoError(t, m.HandleOffer(context.Background(), "bob", offer, nil))

	assert.True(t, first.isClosed())
	assert.Len(t, sender.ofType(domain.SignalAnswer), 1)
	assert.Equal(t, 2, factory.count())
	assert.Equal(t, 1, m.Len())
}

func TestManager_HandleOffer_GlareLargerIDKeepsOwnOffer(t *testing.T) {
	// "carol" > "bob": carol ignores the colliding offer.
	m, factory, sender := newManager("carol", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	require.NoError(t, m.HandleOffer(context.Background(), "bob", offer, nil))

	assert.Empty(t, sender.ofType(domain.SignalAnswer))
	assert.Equal(t, 1, factory.count())
	assert.False(t, factory.last().isClosed())
}

func TestManager_HandleAnswer(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}
	m.HandleAnswer("bob", answer)

	conn := factory.last()
	require.NotNil(t, conn.remoteDesc)
	assert.Equal(t, webrtc.SDPTypeAnswer, conn.remoteDesc.Type)
}

func TestManager_HandleAnswer_UnknownPeerIsNoOp(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	m.HandleAnswer("ghost", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer})

	assert.Equal(t, 0, factory.count())
	assert.Equal(t, 0, m.Len())
}

func TestManager_HandleICECandidate(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	m.HandleICECandidate("bob", webrtc.ICECandidateInit{Candidate: "candidate:1"})
	m.HandleICECandidate("ghost", webrtc.ICECandidateInit{Candidate: "candidate:2"})

	assert.Len(t, factory.last().candidates, 1)
}

func TestManager_RelaysLocalCandidates(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	factory.last().onICE(webrtc.ICECandidateInit{Candidate: "candidate:1"})

	relayed := sender.ofType(domain.SignalICECandidate)
	require.Len(t, relayed, 1)
	assert.Equal(t, "bob", relayed[0].To)
	require.NotNil(t, relayed[0].Candidate)
	assert.Equal(t, "candidate:1", relayed[0].Candidate.Candidate)
}

func TestManager_RemoteTrackRegistry(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	factory.last().onTrack(&fakeRemoteTrack{id: "r1", kind: media.TrackVideo})

	streams := m.RemoteStreams()
	require.Contains(t, streams, "bob")
	assert.Len(t, streams["bob"].Tracks(), 1)
	assert.Len(t, streams["bob"].TracksOfKind(media.TrackVideo), 1)
}

func TestManager_ConnectionStateTransitions(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	conn := factory.last()

	conn.onState(webrtc.PeerConnectionStateConnected)
	state, ok := m.State("bob")
	require.True(t, ok)
	assert.Equal(t, rtc.StateConnected, state)

	conn.onState(webrtc.PeerConnectionStateFailed)
	assert.True(t, conn.isClosed())
	_, ok = m.State("bob")
	assert.False(t, ok)
}

func TestManager_HandlePeerLeft(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	factory.last().onTrack(&fakeRemoteTrack{id: "r1", kind: media.TrackAudio})

	m.HandlePeerLeft("bob")

	assert.True(t, factory.last().isClosed())
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.RemoteStreams())
}

func TestManager_CloseAll(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	require.NoError(t, m.CreateOffer(context.Background(), "carol", nil))

	m.CloseAll()

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.RemoteStreams())
	for _, conn := range factory.conns {
		assert.True(t, conn.isClosed())
	}

	// A closed manager ignores further signaling.
	before := len(sender.messages())
	require.NoError(t, m.CreateOffer(context.Background(), "dave", nil))
	assert.Len(t, sender.messages(), before)
}

func TestManager_ReplaceOutboundVideo(t *testing.T) {
	m, factory, _ := newManager("alice", rtc.Config{NegotiationTimeout: -1})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	require.NoError(t, m.CreateOffer(context.Background(), "carol", nil))

	track := newFakeLocalTrack("v2", media.TrackVideo)
	require.NoError(t, m.ReplaceOutboundVideo(track))

	for _, conn := range factory.conns {
		replaced := conn.replacedTracks()
		require.Len(t, replaced, 1)
		assert.Equal(t, "v2", replaced[0].ID())
	}
}

func TestManager_NegotiationTimeoutRetriesOnce(t *testing.T) {
	m, _, sender := newManager("alice", rtc.Config{NegotiationTimeout: 20 * time.Millisecond})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))

	assert.Eventually(t, func() bool {
		return len(sender.ofType(domain.SignalOffer)) == 2
	}, time.Second, 5*time.Millisecond, "expected exactly one retry offer")

	// The retry itself is allowed to time out, but no third offer follows.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, sender.ofType(domain.SignalOffer), 2)
	_, ok := m.State("bob")
	assert.False(t, ok)
}

func TestManager_TimerStoppedOnConnect(t *testing.T) {
	m, factory, sender := newManager("alice", rtc.Config{NegotiationTimeout: 30 * time.Millisecond})

	require.NoError(t, m.CreateOffer(context.Background(), "bob", nil))
	factory.last().onState(webrtc.PeerConnectionStateConnected)

	time.Sleep(80 * time.Millisecond)

	assert.Len(t, sender.ofType(domain.SignalOffer), 1)
	state, ok := m.State("bob")
	require.True(t, ok)
	assert.Equal(t, rtc.StateConnected, state)
}
