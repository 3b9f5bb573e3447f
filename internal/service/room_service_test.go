package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/media"
	"github.com/luciandrev/estudia_rooms/internal/realtime"
	"github.com/luciandrev/estudia_rooms/internal/repository"
	"github.com/luciandrev/estudia_rooms/internal/rtc"
)

type stubConn struct {
	mu     sync.Mutex
	local  *webrtc.SessionDescription
	remote *webrtc.SessionDescription
	closed bool
}

func (c *stubConn) CreateOffer() (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (c *stubConn) CreateAnswer() (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (c *stubConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = &desc
	return nil
}

func (c *stubConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = &desc
	return nil
}

func (c *stubConn) AddICECandidate(webrtc.ICECandidateInit) error { return nil }
func (c *stubConn) AddTrack(media.Track) error                    { return nil }
func (c *stubConn) ReplaceVideoTrack(media.Track) error           { return nil }
func (c *stubConn) OnTrack(func(rtc.RemoteTrack))                 {}
func (c *stubConn) OnICECandidate(func(webrtc.ICECandidateInit))  {}
func (c *stubConn) OnConnectionStateChange(func(webrtc.PeerConnectionState)) {
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *stubConn) remoteDesc() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

type stubFactory struct {
	mu    sync.Mutex
	conns []*stubConn
}

func (f *stubFactory) NewPeerConnection() (rtc.PeerConnection, error) {
	conn := &stubConn{}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	return conn, nil
}

func (f *stubFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *stubFactory) last() *stubConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

type fixture struct {
	bus          *realtime.MemoryBus
	rooms        *repository.InMemoryRoomRepository
	participants *repository.InMemoryParticipantRepository
	sessions     *repository.InMemoryStudySessionRepository
	profiles     *repository.InMemoryProfileRepository
}

func newFixture() *fixture {
	bus := realtime.NewMemoryBus()
	participants := repository.NewInMemoryParticipantRepository(bus)
	return &fixture{
		bus:          bus,
		rooms:        repository.NewInMemoryRoomRepository(bus, participants),
		participants: participants,
		sessions:     repository.NewInMemoryStudySessionRepository(),
		profiles:     repository.NewInMemoryProfileRepository(),
	}
}

func (f *fixture) service(userID uuid.UUID, cfg RoomConfig) (*RoomService, *stubFactory) {
	factory := &stubFactory{}
	if cfg.Negotiation.NegotiationTimeout == 0 {
		cfg.Negotiation.NegotiationTimeout = -1
	}
	svc := NewRoomService(
		userID,
		f.rooms,
		f.participants,
		f.sessions,
		f.profiles,
		f.bus,
		f.bus,
		factory,
		rtc.NewSampleCapture(),
		cfg,
		nil,
	)
	return svc, factory
}

func TestRoomService_CreateRoom(t *testing.T) {
	f := newFixture()
	host := uuid.New()
	svc, _ := f.service(host, RoomConfig{})
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "calculus grind", nil, 4)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.True(t, room.IsActive)
	assert.Equal(t, host, room.HostID)
	assert.Equal(t, 4, room.MaxParticipants)

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, host, list[0].UserID)

	require.NotNil(t, svc.CurrentRoom())
	assert.Equal(t, room.ID, svc.CurrentRoom().ID)

	_, err = svc.CreateRoom(ctx, "second room", nil, 4)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestRoomService_CreateRoom_RequiresName(t *testing.T) {
	f := newFixture()
	svc, _ := f.service(uuid.New(), RoomConfig{})

	_, err := svc.CreateRoom(context.Background(), "", nil, 0)
	require.Error(t, err)
	assert.Nil(t, svc.CurrentRoom())
}

func TestRoomService_JoinRoom_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hostSvc, _ := f.service(uuid.New(), RoomConfig{})
	room, err := hostSvc.CreateRoom(ctx, "tiny room", nil, 1)
	require.NoError(t, err)

	guest, _ := f.service(uuid.New(), RoomConfig{})

	_, err = guest.JoinRoom(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	_, err = guest.JoinRoom(ctx, room.ID, nil)
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, hostSvc.LeaveRoom(ctx))
	_, err = guest.JoinRoom(ctx, room.ID, nil)
	assert.ErrorIs(t, err, ErrRoomNotActive)
}

func TestRoomService_JoinRoom_PersistsChosenSubject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	roomSubject := uuid.New()
	hostSvc, _ := f.service(uuid.New(), RoomConfig{})
	room, err := hostSvc.CreateRoom(ctx, "study hall", &roomSubject, 8)
	require.NoError(t, err)

	// A guest bringing their own subject keeps it on the participant row.
	ownSubject := uuid.New()
	guestID := uuid.New()
	guestSvc, _ := f.service(guestID, RoomConfig{})
	_, err = guestSvc.JoinRoom(ctx, room.ID, &ownSubject)
	require.NoError(t, err)

	// A guest without one inherits the room's subject.
	inheritID := uuid.New()
	inheritSvc, _ := f.service(inheritID, RoomConfig{})
	_, err = inheritSvc.JoinRoom(ctx, room.ID, nil)
	require.NoError(t, err)

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	subjects := make(map[uuid.UUID]*uuid.UUID, len(list))
	for _, p := range list {
		subjects[p.UserID] = p.SubjectID
	}
	require.NotNil(t, subjects[guestID])
	assert.Equal(t, ownSubject, *subjects[guestID])
	require.NotNil(t, subjects[inheritID])
	assert.Equal(t, roomSubject, *subjects[inheritID])
}

func TestRoomService_JoinRoom_EstablishesPeerConnections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hostID := uuid.New()
	guestID := uuid.New()
	hostSvc, hostFactory := f.service(hostID, RoomConfig{})
	guestSvc, guestFactory := f.service(guestID, RoomConfig{})

	room, err := hostSvc.CreateRoom(ctx, "study hall", nil, 8)
	require.NoError(t, err)

	joined, err := guestSvc.JoinRoom(ctx, room.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// The host offered to the joining guest and the guest answered back.
	require.Equal(t, 1, hostFactory.count())
	require.Equal(t, 1, guestFactory.count())
	require.NotNil(t, guestFactory.last().remoteDesc())
	assert.Equal(t, webrtc.SDPTypeOffer, guestFactory.last().remoteDesc().Type)
	require.NotNil(t, hostFactory.last().remoteDesc())
	assert.Equal(t, webrtc.SDPTypeAnswer, hostFactory.last().remoteDesc().Type)
}

func TestRoomService_LeaveRoom_TearsDownEverything(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hostSvc, hostFactory := f.service(uuid.New(), RoomConfig{})
	guestSvc, guestFactory := f.service(uuid.New(), RoomConfig{})

	room, err := hostSvc.CreateRoom(ctx, "study hall", nil, 8)
	require.NoError(t, err)
	_, err = guestSvc.JoinRoom(ctx, room.ID, nil)
	require.NoError(t, err)

	require.NoError(t, guestSvc.LeaveRoom(ctx))

	assert.Nil(t, guestSvc.CurrentRoom())
	assert.True(t, guestFactory.last().isClosed())
	// The departed peer's connection on the host side is torn down too.
	assert.True(t, hostFactory.last().isClosed())

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// The room stays active until its host leaves.
	got, err := f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, hostSvc.LeaveRoom(ctx))
	got, err = f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, guestSvc.LeaveRoom(ctx), ErrNotInRoom)
}

func TestRoomService_LeaveRoom_GrantsRewardsPastThreshold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.sessions.SeedStats(&domain.UserStats{UserID: userID, TotalStudyHours: 5, TotalXP: 300})

	svc, _ := f.service(userID, RoomConfig{})
	_, err := svc.CreateRoom(ctx, "deep work", nil, 2)
	require.NoError(t, err)

	// Pretend the session ran for two hours and five minutes.
	svc.mu.Lock()
	svc.current.startedAt = time.Now().UTC().Add(-(2*time.Hour + 5*time.Minute))
	svc.mu.Unlock()

	require.NoError(t, svc.LeaveRoom(ctx))

	records := f.sessions.Sessions()
	require.Len(t, records, 1)
	assert.Equal(t, domain.SessionKindVideoCall, records[0].Kind)
	assert.True(t, records[0].Completed)
	assert.InDelta(t, 7500, records[0].DurationSeconds, 2)

	stats, err := f.sessions.GetStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalStudyHours)
	assert.Equal(t, 425, stats.TotalXP)
}

func TestRoomService_LeaveRoom_ShortSessionIsNotRewarded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.sessions.SeedStats(&domain.UserStats{UserID: userID})

	svc, _ := f.service(userID, RoomConfig{})
	_, err := svc.CreateRoom(ctx, "quick check-in", nil, 2)
	require.NoError(t, err)
	require.NoError(t, svc.LeaveRoom(ctx))

	assert.Empty(t, f.sessions.Sessions())
	stats, err := f.sessions.GetStats(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalXP)
}

func TestRoomService_ListRooms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	selfID := uuid.New()
	otherHost := uuid.New()
	f.profiles.Seed(&domain.Profile{UserID: otherHost, Name: "Maria", Username: "maria"})

	require.NoError(t, f.rooms.Create(ctx, domain.NewRoom("algebra", otherHost, nil, 8)))
	require.NoError(t, f.rooms.Create(ctx, domain.NewRoom("own room", selfID, nil, 8)))
	closed := domain.NewRoom("closed", otherHost, nil, 8)
	closed.IsActive = false
	require.NoError(t, f.rooms.Create(ctx, closed))

	svc, _ := f.service(selfID, RoomConfig{})
	rooms, err := svc.ListRooms(ctx)
	require.NoError(t, err)

	require.Len(t, rooms, 1)
	assert.Equal(t, "algebra", rooms[0].Name)
	require.NotNil(t, rooms[0].HostProfile)
	assert.Equal(t, "maria", rooms[0].HostProfile.Username)
}

func TestRoomService_MediaTogglesPersistState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	svc, _ := f.service(uuid.New(), RoomConfig{})
	room, err := svc.CreateRoom(ctx, "focus room", nil, 2)
	require.NoError(t, err)

	enabled, err := svc.ToggleAudio(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsMuted)

	enabled, err = svc.ToggleVideo(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	ok, err := svc.StartScreenShare(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	subject := uuid.New()
	require.NoError(t, svc.SetSubject(ctx, &subject))

	list, err = f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsCameraOff)
	assert.True(t, list[0].IsSharingScreen)
	require.NotNil(t, list[0].SubjectID)
	assert.Equal(t, subject, *list[0].SubjectID)

	require.NoError(t, svc.StopScreenShare(ctx))
	list, err = f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, list[0].IsSharingScreen)
}

func TestRoomService_MediaActionsRequireRoom(t *testing.T) {
	f := newFixture()
	svc, _ := f.service(uuid.New(), RoomConfig{})
	ctx := context.Background()

	_, err := svc.ToggleAudio(ctx)
	assert.ErrorIs(t, err, ErrNotInRoom)
	_, err = svc.ToggleVideo(ctx)
	assert.ErrorIs(t, err, ErrNotInRoom)
	_, err = svc.StartScreenShare(ctx)
	assert.ErrorIs(t, err, ErrNotInRoom)
	assert.ErrorIs(t, svc.StopScreenShare(ctx), ErrNotInRoom)
	assert.ErrorIs(t, svc.SetSubject(ctx, nil), ErrNotInRoom)
}

func TestRoomService_DiscoveryNotifications(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	selfID := uuid.New()

	svc, _ := f.service(selfID, RoomConfig{})
	var (
		mu        sync.Mutex
		snapshots [][]*domain.Room
	)
	svc.OnRoomsChanged = func(rooms []*domain.Room) {
		mu.Lock()
		snapshots = append(snapshots, rooms)
		mu.Unlock()
	}
	require.NoError(t, svc.Start(ctx))
	defer func() { require.NoError(t, svc.Stop()) }()

	require.NoError(t, f.rooms.Create(ctx, domain.NewRoom("physics", uuid.New(), nil, 8)))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	assert.Len(t, snapshots[len(snapshots)-1], 1)
}

func TestRoomService_RewardMathUsesWholeUnits(t *testing.T) {
	// 61 seconds is past the threshold but still under a full hour: one XP
	// per started minute, zero hours.
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.sessions.SeedStats(&domain.UserStats{UserID: userID})

	svc, _ := f.service(userID, RoomConfig{})
	_, err := svc.CreateRoom(ctx, "one more minute", nil, 2)
	require.NoError(t, err)

	svc.mu.Lock()
	svc.current.startedAt = time.Now().UTC().Add(-61 * time.Second)
	svc.mu.Unlock()

	require.NoError(t, svc.LeaveRoom(ctx))

	require.Len(t, f.sessions.Sessions(), 1)
	stats, err := f.sessions.GetStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalStudyHours)
	assert.Equal(t, 1, stats.TotalXP)
}

func TestRoomService_JoinFailureRollsBackParticipant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hostSvc, _ := f.service(uuid.New(), RoomConfig{})
	room, err := hostSvc.CreateRoom(ctx, "study hall", nil, 8)
	require.NoError(t, err)

	guest, _ := f.service(uuid.New(), RoomConfig{})
	guest.transport = failingTransport{}

	_, err = guest.JoinRoom(ctx, room.ID, nil)
	require.Error(t, err)
	assert.Nil(t, guest.CurrentRoom())

	list, err := f.participants.ListActive(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type failingTransport struct{}

func (failingTransport) Channel(roomID, selfID string) realtime.Channel {
	return failingChannel{}
}

type failingChannel struct{}

func (failingChannel) Open(context.Context, realtime.ChannelHandlers) error {
	return errors.New("transport down")
}
func (failingChannel) Send(context.Context, domain.SignalMessage) error {
	return errors.New("transport down")
}
func (failingChannel) Close() error { return nil }
