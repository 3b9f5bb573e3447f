package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/domain"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, name string, subjectID *uuid.UUID, maxParticipants int) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID uuid.UUID, subjectID *uuid.UUID) (*domain.Room, error)
	LeaveRoom(ctx context.Context) error
	ListRooms(ctx context.Context) ([]*domain.Room, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	CurrentRoom() *domain.Room
	ToggleAudio(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
	StartScreenShare(ctx context.Context) (bool, error)
	StopScreenShare(ctx context.Context) error
	SetSubject(ctx context.Context, subjectID *uuid.UUID) error
}

type SubjectInteractor interface {
	ListSubjects(ctx context.Context) ([]*domain.Subject, error)
}
