package domain

import (
	"time"

	"github.com/google/uuid"
)

const SessionKindVideoCall = "videocall"

// StudySession is a completed study record written when a participant leaves
// a room after the reward threshold.
type StudySession struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	SubjectID       *uuid.UUID
	Kind            string
	DurationSeconds int
	Completed       bool
	CreatedAt       time.Time
}

func NewStudySession(userID uuid.UUID, subjectID *uuid.UUID, durationSeconds int) *StudySession {
	return &StudySession{
		ID:              uuid.New(),
		UserID:          userID,
		SubjectID:       subjectID,
		Kind:            SessionKindVideoCall,
		DurationSeconds: durationSeconds,
		Completed:       true,
		CreatedAt:       time.Now().UTC(),
	}
}

// UserStats holds the per-user aggregate totals rewarded on session exit.
type UserStats struct {
	UserID          uuid.UUID
	TotalStudyHours int
	TotalXP         int
}
