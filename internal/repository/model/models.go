package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	HostID          uuid.UUID  `gorm:"type:uuid;index;not null"`
	Name            string     `gorm:"size:255;not null"`
	SubjectID       *uuid.UUID `gorm:"type:uuid"`
	IsActive        bool       `gorm:"index;not null"`
	MaxParticipants int        `gorm:"not null"`
	CreatedAt       time.Time  `gorm:"not null"`
}

func (Room) TableName() string { return "study_rooms" }

type Participant struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID               uuid.UUID  `gorm:"type:uuid;index;not null"`
	UserID               uuid.UUID  `gorm:"type:uuid;index;not null"`
	SubjectID            *uuid.UUID `gorm:"type:uuid"`
	JoinedAt             time.Time  `gorm:"not null"`
	LeftAt               *time.Time `gorm:"index"`
	IsMuted              bool       `gorm:"not null"`
	IsCameraOff          bool       `gorm:"not null"`
	IsSharingScreen      bool       `gorm:"not null"`
	StudyDurationSeconds int        `gorm:"not null"`
}

func (Participant) TableName() string { return "room_participants" }

type StudySession struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null"`
	SubjectID       *uuid.UUID `gorm:"type:uuid"`
	Kind            string     `gorm:"size:32;not null"`
	DurationSeconds int        `gorm:"not null"`
	Completed       bool       `gorm:"not null"`
	CreatedAt       time.Time  `gorm:"not null"`
}

func (StudySession) TableName() string { return "study_sessions" }

type UserStats struct {
	UserID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalStudyHours int       `gorm:"not null"`
	TotalXP         int       `gorm:"column:total_xp;not null"`
}

func (UserStats) TableName() string { return "user_stats" }

type Profile struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Username  string    `gorm:"size:64;uniqueIndex;not null"`
	AvatarURL string    `gorm:"size:512"`
}

func (Profile) TableName() string { return "profiles" }

type Subject struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"size:255;not null"`
	Code string    `gorm:"size:32;not null"`
	Year int
}

func (Subject) TableName() string { return "subjects" }
