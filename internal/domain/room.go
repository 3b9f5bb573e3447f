package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultMaxParticipants = 8

// Room represents a study room that can host a mesh of participants.
// It stores the metadata required for validation and discovery lookups.
type Room struct {
	ID              uuid.UUID
	HostID          uuid.UUID
	Name            string
	SubjectID       *uuid.UUID
	IsActive        bool
	MaxParticipants int
	CreatedAt       time.Time
	HostProfile     *Profile
}

// NewRoom constructs an active room owned by the given host.
func NewRoom(name string, host uuid.UUID, subjectID *uuid.UUID, maxParticipants int) *Room {
	if maxParticipants <= 0 {
		maxParticipants = DefaultMaxParticipants
	}

	return &Room{
		ID:              uuid.New(),
		HostID:          host,
		Name:            name,
		SubjectID:       subjectID,
		IsActive:        true,
		MaxParticipants: maxParticipants,
		CreatedAt:       time.Now().UTC(),
	}
}
