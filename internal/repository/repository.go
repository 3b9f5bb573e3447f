package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/domain"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrStatsNotFound       = errors.New("user stats not found")
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	// CreateWithHost persists the room and the host's participant row in one
	// transactional boundary, so a failed participant insert never leaves an
	// orphaned active room behind.
	CreateWithHost(ctx context.Context, room *domain.Room, host *domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// ListActive returns active rooms, excluding those hosted by excludeHost
	// when it is non-nil.
	ListActive(ctx context.Context, excludeHost uuid.UUID) ([]*domain.Room, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type ParticipantRepository interface {
	Create(ctx context.Context, p *domain.Participant) error
	// ListActive returns the participants of a room with no leave timestamp.
	ListActive(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	CountActive(ctx context.Context, roomID uuid.UUID) (int64, error)
	// UpdateState applies a partial column update (muted/camera/screen/
	// subject) to a participant row.
	UpdateState(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// Finalize stamps the leave timestamp and the accumulated duration.
	Finalize(ctx context.Context, id uuid.UUID, leftAt time.Time, durationSeconds int) error
}

type StudySessionRepository interface {
	Create(ctx context.Context, s *domain.StudySession) error
	GetStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
	UpdateStats(ctx context.Context, stats *domain.UserStats) error
}

type ProfileRepository interface {
	GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*domain.Profile, error)
}

type SubjectRepository interface {
	List(ctx context.Context) ([]*domain.Subject, error)
}
