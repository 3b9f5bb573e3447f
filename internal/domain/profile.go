package domain

import "github.com/google/uuid"

// Profile holds the display data other clients see for a user.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Subject is a course reference a room or participant can study.
type Subject struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
	Year int       `json:"year,omitempty"`
}
