package rtc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/media"
	"github.com/luciandrev/estudia_rooms/lib/logger/sl"
)

const DefaultNegotiationTimeout = 30 * time.Second

// Sender relays signaling messages to the room. The signaling channel
// implements it.
type Sender interface {
	Send(ctx context.Context, msg domain.SignalMessage) error
}

type Config struct {
	// NegotiationTimeout bounds how long a connection may sit in the
	// negotiating state before it is failed and, for the initiator, retried
	// once. Zero means DefaultNegotiationTimeout; negative disables it.
	NegotiationTimeout time.Duration
}

// Manager owns one peer connection per remote participant plus the registry
// of their remote streams. It is constructed per room session and discarded
// on leave; all its maps are guarded because presence events, signaling
// messages and user actions mutate them from different goroutines.
type Manager struct {
	selfID  string
	factory Factory
	sender  Sender
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	conns  map[string]*peerLink
	remote map[string]*RemoteStream
	closed bool
}

type peerLink struct {
	peerID    string
	state     State
	conn      PeerConnection
	initiator bool
	retried   bool
	local     *media.Stream
	timer     *time.Timer
}

func NewManager(selfID string, factory Factory, sender Sender, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.NegotiationTimeout
	if timeout == 0 {
		timeout = DefaultNegotiationTimeout
	}
	return &Manager{
		selfID:  selfID,
		factory: factory,
		sender:  sender,
		log:     log,
		timeout: timeout,
		conns:   make(map[string]*peerLink),
		remote:  make(map[string]*RemoteStream),
	}
}

// CreateOffer opens a connection towards a freshly discovered peer and relays
// the offer. A connection that already exists is left alone.
func (m *Manager) CreateOffer(ctx context.Context, peerID string, local *media.Stream) error {
	return m.createOffer(ctx, peerID, local, false)
}

func (m *Manager) createOffer(ctx context.Context, peerID string, local *media.Stream, retried bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if _, ok := m.conns[peerID]; ok {
		m.mu.Unlock()
		return nil
	}

	link, err := m.newLink(peerID, local, true)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	link.retried = retried
	m.conns[peerID] = link

	offer, err := link.conn.CreateOffer()
	if err == nil {
		err = link.conn.SetLocalDescription(*offer)
	}
	if err != nil {
		m.log.Error("offer creation failed", slog.String("peer", peerID), sl.Err(err))
		// A dead link left registered would block every future offer to
		// this peer.
		m.teardownLocked(link)
		m.mu.Unlock()
		return err
	}

	if next, terr := link.state.Transition(StateNegotiating); terr == nil {
		link.state = next
	}
	m.armTimer(link)
	m.mu.Unlock()

	return m.sender.Send(ctx, domain.SignalMessage{
		Type: domain.SignalOffer,
		From: m.selfID,
		To:   peerID,
		SDP:  offer,
	})
}

// HandleOffer answers an incoming offer, creating the connection first when
// the sender is unknown. On an offer collision the peer with the
// lexicographically smaller identifier yields its own pending offer and takes
// the callee role; the other side ignores the colliding offer.
func (m *Manager) HandleOffer(ctx context.Context, fromID string, offer webrtc.SessionDescription, local *media.Stream) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}

	link, ok := m.conns[fromID]
	if ok && link.initiator && link.state == StateNegotiating {
		if m.selfID < fromID {
			m.log.Info("offer collision, yielding to remote offer", slog.String("peer", fromID))
			m.teardownLocked(link)
			ok = false
		} else {
			m.mu.Unlock()
			m.log.Info("offer collision, keeping own offer", slog.String("peer", fromID))
			return nil
		}
	}

	if !ok {
		var err error
		link, err = m.newLink(fromID, local, false)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.conns[fromID] = link
	}

	if err := link.conn.SetRemoteDescription(offer); err != nil {
		m.log.Error("failed to apply remote offer", slog.String("peer", fromID), sl.Err(err))
		m.mu.Unlock()
		return nil
	}

	answer, err := link.conn.CreateAnswer()
	if err == nil {
		err = link.conn.SetLocalDescription(*answer)
	}
	if err != nil {
		m.log.Error("answer creation failed", slog.String("peer", fromID), sl.Err(err))
		m.mu.Unlock()
		return nil
	}

	if link.state == StateNew {
		if next, terr := link.state.Transition(StateNegotiating); terr == nil {
			link.state = next
		}
		m.armTimer(link)
	}
	m.mu.Unlock()

	return m.sender.Send(ctx, domain.SignalMessage{
		Type: domain.SignalAnswer,
		From: m.selfID,
		To:   fromID,
		SDP:  answer,
	})
}

// HandleAnswer applies an answer to the existing connection. An answer for an
// unknown peer is a logged no-op; out-of-order delivery makes that a normal
// occurrence.
func (m *Manager) HandleAnswer(fromID string, answer webrtc.SessionDescription) {
	m.mu.Lock()
	link, ok := m.conns[fromID]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("answer for unknown peer", slog.String("peer", fromID))
		return
	}
	if err := link.conn.SetRemoteDescription(answer); err != nil {
		m.log.Error("failed to apply answer", slog.String("peer", fromID), sl.Err(err))
	}
}

// HandleICECandidate appends a relayed candidate to the existing connection.
// Candidates for unknown peers are logged no-ops.
func (m *Manager) HandleICECandidate(fromID string, candidate webrtc.ICECandidateInit) {
	m.mu.Lock()
	link, ok := m.conns[fromID]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("candidate for unknown peer", slog.String("peer", fromID))
		return
	}
	if err := link.conn.AddICECandidate(candidate); err != nil {
		m.log.Error("failed to add candidate", slog.String("peer", fromID), sl.Err(err))
	}
}

// HandlePeerLeft tears down the connection and remote stream of a departed
// peer.
func (m *Manager) HandlePeerLeft(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.conns[peerID]; ok {
		m.teardownLocked(link)
	}
}

// CloseAll closes every open connection and empties the manager. Called on
// local leave.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.conns {
		m.teardownLocked(link)
	}
	m.conns = make(map[string]*peerLink)
	m.remote = make(map[string]*RemoteStream)
	m.closed = true
}

// ReplaceOutboundVideo swaps the outbound video track on every open
// connection. Implements media.TrackSwitcher.
func (m *Manager) ReplaceOutboundVideo(t media.Track) error {
	m.mu.Lock()
	conns := make([]PeerConnection, 0, len(m.conns))
	for _, link := range m.conns {
		conns = append(conns, link.conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		if err := conn.ReplaceVideoTrack(t); err != nil {
			m.log.Error("track replacement failed", sl.Err(err))
		}
	}
	return nil
}

// RemoteStreams returns a snapshot of the remote stream registry keyed by
// peer identifier.
func (m *Manager) RemoteStreams() map[string]*RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*RemoteStream, len(m.remote))
	for id, s := range m.remote {
		out[id] = s
	}
	return out
}

// State reports the connection state for a peer, if one exists.
func (m *Manager) State(peerID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.conns[peerID]
	if !ok {
		return StateNew, false
	}
	return link.state, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// newLink instantiates a connection, attaches the local tracks and registers
// the inbound track, candidate relay and state handlers. Caller holds m.mu.
func (m *Manager) newLink(peerID string, local *media.Stream, initiator bool) (*peerLink, error) {
	conn, err := m.factory.NewPeerConnection()
	if err != nil {
		return nil, err
	}

	link := &peerLink{
		peerID:    peerID,
		state:     StateNew,
		conn:      conn,
		initiator: initiator,
		local:     local,
	}

	if local != nil {
		for _, t := range local.Tracks() {
			if err := conn.AddTrack(t); err != nil {
				m.log.Error("failed to attach local track", slog.String("peer", peerID), sl.Err(err))
			}
		}
	}

	conn.OnTrack(func(t RemoteTrack) {
		m.mu.Lock()
		stream, ok := m.remote[peerID]
		if !ok {
			stream = newRemoteStream(peerID)
			m.remote[peerID] = stream
		}
		m.mu.Unlock()
		stream.addTrack(t)
	})

	conn.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		err := m.sender.Send(context.Background(), domain.SignalMessage{
			Type:      domain.SignalICECandidate,
			From:      m.selfID,
			To:        peerID,
			Candidate: &candidate,
		})
		if err != nil {
			m.log.Error("failed to relay candidate", slog.String("peer", peerID), sl.Err(err))
		}
	})

	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.onConnectionState(link, state)
	})

	return link, nil
}

func (m *Manager) onConnectionState(link *peerLink, state webrtc.PeerConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conns[link.peerID] != link {
		return
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		next, err := link.state.Transition(StateConnected)
		if err != nil {
			m.log.Warn("rejected state transition", slog.String("peer", link.peerID), sl.Err(err))
			return
		}
		link.state = next
		m.stopTimer(link)
		m.log.Info("peer connected", slog.String("peer", link.peerID))
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		target := StateDisconnected
		if state == webrtc.PeerConnectionStateFailed {
			target = StateFailed
		}
		if next, err := link.state.Transition(target); err == nil {
			link.state = next
		}
		m.log.Info("peer link lost", slog.String("peer", link.peerID), slog.String("state", state.String()))
		m.teardownLocked(link)
	}
}

func (m *Manager) armTimer(link *peerLink) {
	if m.timeout <= 0 {
		return
	}
	link.timer = time.AfterFunc(m.timeout, func() {
		m.onNegotiationTimeout(link)
	})
}

func (m *Manager) stopTimer(link *peerLink) {
	if link.timer != nil {
		link.timer.Stop()
		link.timer = nil
	}
}

// onNegotiationTimeout fails a connection parked in negotiating and, when the
// local side initiated it, retries the offer once.
func (m *Manager) onNegotiationTimeout(link *peerLink) {
	m.mu.Lock()
	if m.closed || m.conns[link.peerID] != link || link.state != StateNegotiating {
		m.mu.Unlock()
		return
	}

	m.log.Warn("negotiation timed out", slog.String("peer", link.peerID))
	if next, err := link.state.Transition(StateFailed); err == nil {
		link.state = next
	}
	m.teardownLocked(link)

	retry := link.initiator && !link.retried
	local := link.local
	m.mu.Unlock()

	if retry {
		m.log.Info("retrying offer", slog.String("peer", link.peerID))
		if err := m.createOffer(context.Background(), link.peerID, local, true); err != nil {
			m.log.Error("offer retry failed", slog.String("peer", link.peerID), sl.Err(err))
		}
	}
}

// teardownLocked closes the connection and drops it from the table and the
// remote stream registry. Caller holds m.mu.
func (m *Manager) teardownLocked(link *peerLink) {
	m.stopTimer(link)
	if err := link.conn.Close(); err != nil {
		m.log.Error("failed to close peer connection", slog.String("peer", link.peerID), sl.Err(err))
	}
	delete(m.conns, link.peerID)
	delete(m.remote, link.peerID)
}
