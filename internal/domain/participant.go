package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a user's membership record within one room. A user has at
// most one participant row per room with a nil LeftAt.
type Participant struct {
	ID                   uuid.UUID
	RoomID               uuid.UUID
	UserID               uuid.UUID
	SubjectID            *uuid.UUID
	JoinedAt             time.Time
	LeftAt               *time.Time
	IsMuted              bool
	IsCameraOff          bool
	IsSharingScreen      bool
	StudyDurationSeconds int
	Profile              *Profile
}

func NewParticipant(roomID, userID uuid.UUID, subjectID *uuid.UUID) *Participant {
	return &Participant{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    userID,
		SubjectID: subjectID,
		JoinedAt:  time.Now().UTC(),
	}
}

// IsPresent reports whether the participant has not left the room yet.
func (p *Participant) IsPresent() bool {
	return p != nil && p.LeftAt == nil
}
