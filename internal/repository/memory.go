package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/realtime"
)

// In-memory implementations backing tests and single-node development.

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*domain.Room
	pub   realtime.Publisher

	// participants is shared with the participant repository so that
	// CreateWithHost can write both rows atomically.
	participants *InMemoryParticipantRepository
}

func NewInMemoryRoomRepository(pub realtime.Publisher, participants *InMemoryParticipantRepository) *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms:        make(map[uuid.UUID]*domain.Room),
		pub:          pub,
		participants: participants,
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	cp := *room
	r.rooms[room.ID] = &cp
	r.mu.Unlock()

	publish(ctx, r.pub, "study_rooms", realtime.OpInsert, map[string]string{"id": room.ID.String()})
	return nil
}

func (r *InMemoryRoomRepository) CreateWithHost(ctx context.Context, room *domain.Room, host *domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.participants == nil {
		return errors.New("participant repository not attached")
	}

	r.mu.Lock()
	cp := *room
	r.rooms[room.ID] = &cp
	r.mu.Unlock()

	if err := r.participants.Create(ctx, host); err != nil {
		// Roll the room back so no orphaned active room is left behind.
		r.mu.Lock()
		delete(r.rooms, room.ID)
		r.mu.Unlock()
		return err
	}

	publish(ctx, r.pub, "study_rooms", realtime.OpInsert, map[string]string{"id": room.ID.String()})
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *InMemoryRoomRepository) ListActive(ctx context.Context, excludeHost uuid.UUID) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if !room.IsActive {
			continue
		}
		if excludeHost != uuid.Nil && room.HostID == excludeHost {
			continue
		}
		cp := *room
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryRoomRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	room.IsActive = false
	r.mu.Unlock()

	publish(ctx, r.pub, "study_rooms", realtime.OpUpdate, map[string]string{"id": id.String()})
	return nil
}

type InMemoryParticipantRepository struct {
	mu           sync.RWMutex
	participants map[uuid.UUID]*domain.Participant
	pub          realtime.Publisher
}

func NewInMemoryParticipantRepository(pub realtime.Publisher) *InMemoryParticipantRepository {
	return &InMemoryParticipantRepository{
		participants: make(map[uuid.UUID]*domain.Participant),
		pub:          pub,
	}
}

func (r *InMemoryParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	cp := *p
	r.participants[p.ID] = &cp
	r.mu.Unlock()

	publish(ctx, r.pub, "room_participants", realtime.OpInsert, map[string]string{
		"id":      p.ID.String(),
		"room_id": p.RoomID.String(),
	})
	return nil
}

func (r *InMemoryParticipantRepository) ListActive(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Participant
	for _, p := range r.participants {
		if p.RoomID == roomID && p.LeftAt == nil {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (r *InMemoryParticipantRepository) CountActive(ctx context.Context, roomID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, p := range r.participants {
		if p.RoomID == roomID && p.LeftAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryParticipantRepository) UpdateState(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return ErrParticipantNotFound
	}
	if err := applyParticipantUpdate(p, updates); err != nil {
		r.mu.Unlock()
		return err
	}
	roomID := p.RoomID
	r.mu.Unlock()

	publish(ctx, r.pub, "room_participants", realtime.OpUpdate, map[string]string{
		"id":      id.String(),
		"room_id": roomID.String(),
	})
	return nil
}

func (r *InMemoryParticipantRepository) Finalize(ctx context.Context, id uuid.UUID, leftAt time.Time, durationSeconds int) error {
	return r.UpdateState(ctx, id, map[string]any{
		"left_at":                leftAt.UTC(),
		"study_duration_seconds": durationSeconds,
	})
}

func applyParticipantUpdate(p *domain.Participant, updates map[string]any) error {
	for column, value := range updates {
		switch column {
		case "is_muted":
			p.IsMuted = value.(bool)
		case "is_camera_off":
			p.IsCameraOff = value.(bool)
		case "is_sharing_screen":
			p.IsSharingScreen = value.(bool)
		case "subject_id":
			switch v := value.(type) {
			case *uuid.UUID:
				p.SubjectID = v
			case uuid.UUID:
				p.SubjectID = &v
			default:
				return errors.New("subject_id must be a uuid")
			}
		case "left_at":
			t := value.(time.Time)
			p.LeftAt = &t
		case "study_duration_seconds":
			p.StudyDurationSeconds = value.(int)
		default:
			return errors.New("unknown participant column: " + column)
		}
	}
	return nil
}

type InMemoryStudySessionRepository struct {
	mu       sync.RWMutex
	sessions []*domain.StudySession
	stats    map[uuid.UUID]*domain.UserStats
}

func NewInMemoryStudySessionRepository() *InMemoryStudySessionRepository {
	return &InMemoryStudySessionRepository{
		stats: make(map[uuid.UUID]*domain.UserStats),
	}
}

func (r *InMemoryStudySessionRepository) Create(ctx context.Context, s *domain.StudySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions = append(r.sessions, &cp)
	return nil
}

// Sessions returns a snapshot of all recorded study sessions.
func (r *InMemoryStudySessionRepository) Sessions() []*domain.StudySession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.StudySession, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// SeedStats installs an aggregate stats row for a user.
func (r *InMemoryStudySessionRepository) SeedStats(stats *domain.UserStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *stats
	r.stats[stats.UserID] = &cp
}

func (r *InMemoryStudySessionRepository) GetStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats, ok := r.stats[userID]
	if !ok {
		return nil, ErrStatsNotFound
	}
	cp := *stats
	return &cp, nil
}

func (r *InMemoryStudySessionRepository) UpdateStats(ctx context.Context, stats *domain.UserStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stats[stats.UserID]; !ok {
		return ErrStatsNotFound
	}
	cp := *stats
	r.stats[stats.UserID] = &cp
	return nil
}

type InMemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*domain.Profile
}

func NewInMemoryProfileRepository() *InMemoryProfileRepository {
	return &InMemoryProfileRepository{profiles: make(map[uuid.UUID]*domain.Profile)}
}

func (r *InMemoryProfileRepository) Seed(p *domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.profiles[p.UserID] = &cp
}

func (r *InMemoryProfileRepository) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Profile
	for _, id := range userIDs {
		if p, ok := r.profiles[id]; ok {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

type InMemorySubjectRepository struct {
	mu       sync.RWMutex
	subjects []*domain.Subject
}

func NewInMemorySubjectRepository() *InMemorySubjectRepository {
	return &InMemorySubjectRepository{}
}

func (r *InMemorySubjectRepository) Seed(s *domain.Subject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.subjects = append(r.subjects, &cp)
}

func (r *InMemorySubjectRepository) List(ctx context.Context) ([]*domain.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		cp := *s
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}
