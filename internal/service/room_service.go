package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/media"
	"github.com/luciandrev/estudia_rooms/internal/realtime"
	"github.com/luciandrev/estudia_rooms/internal/repository"
	"github.com/luciandrev/estudia_rooms/internal/rtc"
	"github.com/luciandrev/estudia_rooms/lib/logger/sl"
)

var (
	ErrRoomNotActive = errors.New("room is not active")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotInRoom     = errors.New("not in a room")
)

// DefaultRewardThreshold is the minimum in-room time before leaving records a
// study session and grants stats.
const DefaultRewardThreshold = 60 * time.Second

type RoomConfig struct {
	// RewardThreshold of zero means DefaultRewardThreshold.
	RewardThreshold time.Duration
	Negotiation     rtc.Config
}

// session bundles everything that lives exactly as long as one room
// membership: the signaling channel, the peer mesh, and the local media.
type session struct {
	room        *domain.Room
	participant *domain.Participant
	startedAt   time.Time
	channel     realtime.Channel
	peers       *rtc.Manager
	media       *media.Controller
	watch       realtime.Subscription
}

type RoomService struct {
	userID       uuid.UUID
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	sessions     repository.StudySessionRepository
	profiles     repository.ProfileRepository
	transport    realtime.Transport
	feed         realtime.Feed
	factory      rtc.Factory
	capture      media.Capture
	cfg          RoomConfig
	log          *slog.Logger

	// OnRoomsChanged and OnParticipantsChanged are invoked with a fresh
	// snapshot whenever the corresponding table changes. Set them before
	// Start.
	OnRoomsChanged        func([]*domain.Room)
	OnParticipantsChanged func([]*domain.Participant)

	mu       sync.Mutex
	current  *session
	roomsSub realtime.Subscription
}

func NewRoomService(
	userID uuid.UUID,
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	sessions repository.StudySessionRepository,
	profiles repository.ProfileRepository,
	transport realtime.Transport,
	feed realtime.Feed,
	factory rtc.Factory,
	capture media.Capture,
	cfg RoomConfig,
	log *slog.Logger,
) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RewardThreshold == 0 {
		cfg.RewardThreshold = DefaultRewardThreshold
	}
	return &RoomService{
		userID:       userID,
		rooms:        rooms,
		participants: participants,
		sessions:     sessions,
		profiles:     profiles,
		transport:    transport,
		feed:         feed,
		factory:      factory,
		capture:      capture,
		cfg:          cfg,
		log:          log,
	}
}

// Start subscribes to room table changes for discovery. Callers that only
// need explicit ListRooms calls can skip it.
func (s *RoomService) Start(ctx context.Context) error {
	const op = "service.room.start"

	sub, err := s.feed.Subscribe(ctx, "study_rooms", nil, func(realtime.ChangeEvent) {
		s.notifyRooms()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	s.roomsSub = sub
	s.mu.Unlock()
	return nil
}

// Stop tears down the discovery subscription. It does not leave the current
// room; callers do that explicitly.
func (s *RoomService) Stop() error {
	s.mu.Lock()
	sub := s.roomsSub
	s.roomsSub = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (s *RoomService) CreateRoom(ctx context.Context, name string, subjectID *uuid.UUID, maxParticipants int) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	if name == "" {
		return nil, errors.New("room name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrAlreadyInRoom
	}

	room := domain.NewRoom(name, s.userID, subjectID, maxParticipants)
	host := domain.NewParticipant(room.ID, s.userID, subjectID)
	if err := s.rooms.CreateWithHost(ctx, room, host); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("room created", slog.String("room_id", room.ID.String()))

	if err := s.enterRoom(ctx, room, host); err != nil {
		s.abandonParticipant(ctx, host)
		if derr := s.rooms.Deactivate(ctx, room.ID); derr != nil {
			log.Error("failed to deactivate room after join failure", sl.Err(derr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return room, nil
}

func (s *RoomService) JoinRoom(ctx context.Context, roomID uuid.UUID, subjectID *uuid.UUID) (*domain.Room, error) {
	const op = "service.room.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrAlreadyInRoom
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !room.IsActive {
		return nil, ErrRoomNotActive
	}

	count, err := s.participants.CountActive(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count >= int64(room.MaxParticipants) {
		return nil, ErrRoomFull
	}

	// A guest studying their own subject keeps it; otherwise inherit the room's.
	if subjectID == nil {
		subjectID = room.SubjectID
	}
	p := domain.NewParticipant(roomID, s.userID, subjectID)
	if err := s.participants.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("joined room")

	if err := s.enterRoom(ctx, room, p); err != nil {
		s.abandonParticipant(ctx, p)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return room, nil
}

// enterRoom opens the signaling channel and the peer mesh. Caller holds s.mu.
func (s *RoomService) enterRoom(ctx context.Context, room *domain.Room, p *domain.Participant) error {
	channel := s.transport.Channel(room.ID.String(), s.userID.String())
	peers := rtc.NewManager(s.userID.String(), s.factory, channel, s.cfg.Negotiation, s.log)
	mediaCtl := media.NewController(s.capture, peers, s.log)

	// A participant without devices still joins; they just publish nothing.
	if _, err := mediaCtl.AcquireLocalMedia(ctx, true, true); err != nil {
		s.log.Warn("joining without local media", sl.Err(err))
	}
	mediaCtl.SetOnShareEnded(func() {
		s.persistState(context.Background(), p.ID, map[string]any{"is_sharing_screen": false})
	})

	handlers := realtime.ChannelHandlers{
		OnSignal: func(msg domain.SignalMessage) {
			s.dispatchSignal(peers, mediaCtl, msg)
		},
		OnPresence: func(ev realtime.PresenceEvent) {
			switch ev.Kind {
			case realtime.PresenceJoin:
				if err := peers.CreateOffer(context.Background(), ev.PeerID, mediaCtl.Local()); err != nil {
					s.log.Error("failed to offer to joining peer",
						slog.String("peer_id", ev.PeerID), sl.Err(err))
				}
			case realtime.PresenceLeave:
				peers.HandlePeerLeft(ev.PeerID)
			}
		},
	}
	if err := channel.Open(ctx, handlers); err != nil {
		mediaCtl.StopAll()
		return err
	}

	watch, err := s.feed.Subscribe(ctx, "room_participants",
		&realtime.Filter{Column: "room_id", Value: room.ID.String()},
		func(realtime.ChangeEvent) { s.notifyParticipants(room.ID) },
	)
	if err != nil {
		s.log.Warn("participant watch unavailable", sl.Err(err))
	}

	s.current = &session{
		room:        room,
		participant: p,
		startedAt:   time.Now().UTC(),
		channel:     channel,
		peers:       peers,
		media:       mediaCtl,
		watch:       watch,
	}
	return nil
}

func (s *RoomService) dispatchSignal(peers *rtc.Manager, mediaCtl *media.Controller, msg domain.SignalMessage) {
	ctx := context.Background()
	switch msg.Type {
	case domain.SignalOffer:
		if msg.SDP == nil {
			return
		}
		if err := peers.HandleOffer(ctx, msg.From, *msg.SDP, mediaCtl.Local()); err != nil {
			s.log.Error("failed to handle offer", slog.String("peer_id", msg.From), sl.Err(err))
		}
	case domain.SignalAnswer:
		if msg.SDP == nil {
			return
		}
		peers.HandleAnswer(msg.From, *msg.SDP)
	case domain.SignalICECandidate:
		if msg.Candidate == nil {
			return
		}
		peers.HandleICECandidate(msg.From, *msg.Candidate)
	}
}

// LeaveRoom finalizes the participant row, grants study rewards past the
// threshold, deactivates the room when the host leaves, and releases the
// channel, mesh and media. Every step is independent: one failing step is
// logged and the rest still run.
func (s *RoomService) LeaveRoom(ctx context.Context) error {
	const op = "service.room.leave"

	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()

	if sess == nil {
		return ErrNotInRoom
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", sess.room.ID.String()),
	)

	duration := int(time.Since(sess.startedAt) / time.Second)
	if err := s.participants.Finalize(ctx, sess.participant.ID, time.Now().UTC(), duration); err != nil {
		log.Error("failed to finalize participant", sl.Err(err))
	}

	if time.Duration(duration)*time.Second > s.cfg.RewardThreshold {
		s.grantRewards(ctx, sess.participant.SubjectID, duration, log)
	}

	if sess.room.HostID == s.userID {
		if err := s.rooms.Deactivate(ctx, sess.room.ID); err != nil {
			log.Error("failed to deactivate room", sl.Err(err))
		}
	}

	if sess.watch != nil {
		if err := sess.watch.Close(); err != nil {
			log.Error("failed to close participant watch", sl.Err(err))
		}
	}
	sess.peers.CloseAll()
	if err := sess.channel.Close(); err != nil {
		log.Error("failed to close signaling channel", sl.Err(err))
	}
	sess.media.StopAll()

	log.Info("left room", slog.Int("duration_seconds", duration))
	return nil
}

func (s *RoomService) grantRewards(ctx context.Context, subjectID *uuid.UUID, durationSeconds int, log *slog.Logger) {
	record := domain.NewStudySession(s.userID, subjectID, durationSeconds)
	if err := s.sessions.Create(ctx, record); err != nil {
		log.Error("failed to record study session", sl.Err(err))
	}

	stats, err := s.sessions.GetStats(ctx, s.userID)
	if err != nil {
		if errors.Is(err, repository.ErrStatsNotFound) {
			log.Debug("no stats row for user, skipping reward")
		} else {
			log.Error("failed to load user stats", sl.Err(err))
		}
		return
	}

	stats.TotalStudyHours += durationSeconds / 3600
	stats.TotalXP += durationSeconds / 60
	if err := s.sessions.UpdateStats(ctx, stats); err != nil {
		log.Error("failed to update user stats", sl.Err(err))
	}
}

func (s *RoomService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := s.rooms.ListActive(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	hostIDs := make([]uuid.UUID, 0, len(rooms))
	for _, room := range rooms {
		hostIDs = append(hostIDs, room.HostID)
	}
	byUser, err := s.profilesByUser(ctx, hostIDs)
	if err != nil {
		s.log.Warn("failed to load host profiles", sl.Err(err))
		return rooms, nil
	}
	for _, room := range rooms {
		room.HostProfile = byUser[room.HostID]
	}
	return rooms, nil
}

func (s *RoomService) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	list, err := s.participants.ListActive(ctx, roomID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, 0, len(list))
	for _, p := range list {
		userIDs = append(userIDs, p.UserID)
	}
	byUser, err := s.profilesByUser(ctx, userIDs)
	if err != nil {
		s.log.Warn("failed to load participant profiles", sl.Err(err))
		return list, nil
	}
	for _, p := range list {
		p.Profile = byUser[p.UserID]
	}
	return list, nil
}

func (s *RoomService) profilesByUser(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*domain.Profile, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]*domain.Profile{}, nil
	}
	profiles, err := s.profiles.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID]*domain.Profile, len(profiles))
	for _, p := range profiles {
		byUser[p.UserID] = p
	}
	return byUser, nil
}

func (s *RoomService) CurrentRoom() *domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.room
}

func (s *RoomService) ToggleAudio(ctx context.Context) (bool, error) {
	sess := s.session()
	if sess == nil {
		return false, ErrNotInRoom
	}

	enabled := sess.media.ToggleAudio()
	s.persistState(ctx, sess.participant.ID, map[string]any{"is_muted": !enabled})
	return enabled, nil
}

func (s *RoomService) ToggleVideo(ctx context.Context) (bool, error) {
	sess := s.session()
	if sess == nil {
		return false, ErrNotInRoom
	}

	if err := sess.media.ToggleVideo(ctx); err != nil {
		return sess.media.IsVideoEnabled(), err
	}
	enabled := sess.media.IsVideoEnabled()
	s.persistState(ctx, sess.participant.ID, map[string]any{"is_camera_off": !enabled})
	return enabled, nil
}

func (s *RoomService) StartScreenShare(ctx context.Context) (bool, error) {
	sess := s.session()
	if sess == nil {
		return false, ErrNotInRoom
	}

	ok := sess.media.StartScreenShare(ctx)
	if ok {
		s.persistState(ctx, sess.participant.ID, map[string]any{"is_sharing_screen": true})
	}
	return ok, nil
}

func (s *RoomService) StopScreenShare(ctx context.Context) error {
	sess := s.session()
	if sess == nil {
		return ErrNotInRoom
	}

	sess.media.StopScreenShare()
	s.persistState(ctx, sess.participant.ID, map[string]any{"is_sharing_screen": false})
	return nil
}

func (s *RoomService) SetSubject(ctx context.Context, subjectID *uuid.UUID) error {
	sess := s.session()
	if sess == nil {
		return ErrNotInRoom
	}

	if err := s.participants.UpdateState(ctx, sess.participant.ID, map[string]any{"subject_id": subjectID}); err != nil {
		return err
	}
	sess.participant.SubjectID = subjectID
	return nil
}

func (s *RoomService) session() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// persistState mirrors a local media flag into the participant row. A failed
// write never undoes the local change.
func (s *RoomService) persistState(ctx context.Context, participantID uuid.UUID, updates map[string]any) {
	if err := s.participants.UpdateState(ctx, participantID, updates); err != nil {
		s.log.Error("failed to persist participant state", sl.Err(err))
	}
}

func (s *RoomService) abandonParticipant(ctx context.Context, p *domain.Participant) {
	if err := s.participants.Finalize(ctx, p.ID, time.Now().UTC(), 0); err != nil {
		s.log.Error("failed to finalize abandoned participant", sl.Err(err))
	}
}

func (s *RoomService) notifyRooms() {
	cb := s.OnRoomsChanged
	if cb == nil {
		return
	}
	rooms, err := s.ListRooms(context.Background())
	if err != nil {
		s.log.Error("failed to refresh room list", sl.Err(err))
		return
	}
	cb(rooms)
}

func (s *RoomService) notifyParticipants(roomID uuid.UUID) {
	cb := s.OnParticipantsChanged
	if cb == nil {
		return
	}
	list, err := s.ListParticipants(context.Background(), roomID)
	if err != nil {
		s.log.Error("failed to refresh participant list", sl.Err(err))
		return
	}
	cb(list)
}
