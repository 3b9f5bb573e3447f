package converter

import (
	"time"

	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/domain"
)

type RoomResponse struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	HostID          uuid.UUID        `json:"host_id"`
	SubjectID       *uuid.UUID       `json:"subject_id,omitempty"`
	IsActive        bool             `json:"is_active"`
	MaxParticipants int              `json:"max_participants"`
	CreatedAt       time.Time        `json:"created_at"`
	Host            *ProfileResponse `json:"host,omitempty"`
}

type ProfileResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type ParticipantResponse struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	SubjectID       *uuid.UUID       `json:"subject_id,omitempty"`
	JoinedAt        time.Time        `json:"joined_at"`
	IsMuted         bool             `json:"is_muted"`
	IsCameraOff     bool             `json:"is_camera_off"`
	IsSharingScreen bool             `json:"is_sharing_screen"`
	Profile         *ProfileResponse `json:"profile,omitempty"`
}

type SubjectResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
	Year int       `json:"year"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	return &RoomResponse{
		ID:              r.ID,
		Name:            r.Name,
		HostID:          r.HostID,
		SubjectID:       r.SubjectID,
		IsActive:        r.IsActive,
		MaxParticipants: r.MaxParticipants,
		CreatedAt:       r.CreatedAt,
		Host:            ProfileToApi(r.HostProfile),
	}
}

func RoomsToApi(rooms []*domain.Room) []*RoomResponse {
	out := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToApi(r))
	}
	return out
}

func ParticipantToApi(p *domain.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		SubjectID:       p.SubjectID,
		JoinedAt:        p.JoinedAt,
		IsMuted:         p.IsMuted,
		IsCameraOff:     p.IsCameraOff,
		IsSharingScreen: p.IsSharingScreen,
		Profile:         ProfileToApi(p.Profile),
	}
}

func ParticipantsToApi(list []*domain.Participant) []*ParticipantResponse {
	out := make([]*ParticipantResponse, 0, len(list))
	for _, p := range list {
		out = append(out, ParticipantToApi(p))
	}
	return out
}

func ProfileToApi(p *domain.Profile) *ProfileResponse {
	if p == nil {
		return nil
	}
	return &ProfileResponse{
		UserID:    p.UserID,
		Name:      p.Name,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
	}
}

func SubjectsToApi(subjects []*domain.Subject) []*SubjectResponse {
	out := make([]*SubjectResponse, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, &SubjectResponse{
			ID:   s.ID,
			Name: s.Name,
			Code: s.Code,
			Year: s.Year,
		})
	}
	return out
}
