package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/realtime"
	"github.com/luciandrev/estudia_rooms/internal/repository/model"
)

// publish emits a best-effort change notification after a successful write.
// Other clients refetch on it; a dropped event only delays their refresh.
func publish(ctx context.Context, pub realtime.Publisher, table string, op realtime.ChangeOp, fields map[string]string) {
	if pub == nil {
		return
	}
	_ = pub.Publish(ctx, realtime.ChangeEvent{Table: table, Op: op, Fields: fields})
}

type PostgresRoomRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewPostgresRoomRepository(db *gorm.DB, pub realtime.Publisher) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db, pub: pub}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelRoom(room)).Error; err != nil {
		return err
	}

	publish(ctx, r.pub, model.Room{}.TableName(), realtime.OpInsert, map[string]string{"id": room.ID.String()})
	return nil
}

func (r *PostgresRoomRepository) CreateWithHost(ctx context.Context, room *domain.Room, host *domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil || host == nil {
		return errors.New("room and host are required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toModelRoom(room)).Error; err != nil {
			return err
		}
		return tx.Create(toModelParticipant(host)).Error
	})
	if err != nil {
		return err
	}

	publish(ctx, r.pub, model.Room{}.TableName(), realtime.OpInsert, map[string]string{"id": room.ID.String()})
	publish(ctx, r.pub, model.Participant{}.TableName(), realtime.OpInsert, map[string]string{
		"id":      host.ID.String(),
		"room_id": host.RoomID.String(),
	})
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) ListActive(ctx context.Context, excludeHost uuid.UUID) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if excludeHost != uuid.Nil {
		q = q.Where("host_id <> ?", excludeHost)
	}

	var rooms []model.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		result = append(result, toDomainRoom(&rooms[i]))
	}
	return result, nil
}

func (r *PostgresRoomRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}

	publish(ctx, r.pub, model.Room{}.TableName(), realtime.OpUpdate, map[string]string{"id": id.String()})
	return nil
}

type PostgresParticipantRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewPostgresParticipantRepository(db *gorm.DB, pub realtime.Publisher) *PostgresParticipantRepository {
	return &PostgresParticipantRepository{db: db, pub: pub}
}

func (r *PostgresParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return errors.New("participant is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelParticipant(p)).Error; err != nil {
		return err
	}

	publish(ctx, r.pub, model.Participant{}.TableName(), realtime.OpInsert, map[string]string{
		"id":      p.ID.String(),
		"room_id": p.RoomID.String(),
	})
	return nil
}

func (r *PostgresParticipantRepository) ListActive(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var participants []model.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Participant, 0, len(participants))
	for i := range participants {
		result = append(result, toDomainParticipant(&participants[i]))
	}
	return result, nil
}

func (r *PostgresParticipantRepository) CountActive(ctx context.Context, roomID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Participant{}).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Count(&count).Error
	return count, err
}

func (r *PostgresParticipantRepository) UpdateState(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	var p model.Participant
	if err := r.db.WithContext(ctx).Select("id", "room_id").First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Participant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}

	publish(ctx, r.pub, model.Participant{}.TableName(), realtime.OpUpdate, map[string]string{
		"id":      id.String(),
		"room_id": p.RoomID.String(),
	})
	return nil
}

func (r *PostgresParticipantRepository) Finalize(ctx context.Context, id uuid.UUID, leftAt time.Time, durationSeconds int) error {
	return r.UpdateState(ctx, id, map[string]any{
		"left_at":                leftAt.UTC(),
		"study_duration_seconds": durationSeconds,
	})
}

type PostgresStudySessionRepository struct {
	db *gorm.DB
}

func NewPostgresStudySessionRepository(db *gorm.DB) *PostgresStudySessionRepository {
	return &PostgresStudySessionRepository{db: db}
}

func (r *PostgresStudySessionRepository) Create(ctx context.Context, s *domain.StudySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("study session is nil")
	}
	return r.db.WithContext(ctx).Create(toModelStudySession(s)).Error
}

func (r *PostgresStudySessionRepository) GetStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stats model.UserStats
	err := r.db.WithContext(ctx).First(&stats, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStatsNotFound
		}
		return nil, err
	}

	return &domain.UserStats{
		UserID:          stats.UserID,
		TotalStudyHours: stats.TotalStudyHours,
		TotalXP:         stats.TotalXP,
	}, nil
}

func (r *PostgresStudySessionRepository) UpdateStats(ctx context.Context, stats *domain.UserStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stats == nil {
		return errors.New("stats is nil")
	}

	res := r.db.WithContext(ctx).Model(&model.UserStats{}).
		Where("user_id = ?", stats.UserID).
		Updates(map[string]any{
			"total_study_hours": stats.TotalStudyHours,
			"total_xp":          stats.TotalXP,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatsNotFound
	}
	return nil
}

type PostgresProfileRepository struct {
	db *gorm.DB
}

func NewPostgresProfileRepository(db *gorm.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) GetByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	var profiles []model.Profile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Profile, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		result = append(result, &domain.Profile{
			UserID:    p.UserID,
			Name:      p.Name,
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
		})
	}
	return result, nil
}

type PostgresSubjectRepository struct {
	db *gorm.DB
}

func NewPostgresSubjectRepository(db *gorm.DB) *PostgresSubjectRepository {
	return &PostgresSubjectRepository{db: db}
}

func (r *PostgresSubjectRepository) List(ctx context.Context) ([]*domain.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var subjects []model.Subject
	if err := r.db.WithContext(ctx).Order("code").Find(&subjects).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Subject, 0, len(subjects))
	for i := range subjects {
		s := subjects[i]
		result = append(result, &domain.Subject{ID: s.ID, Name: s.Name, Code: s.Code, Year: s.Year})
	}
	return result, nil
}

func toModelRoom(room *domain.Room) *model.Room {
	return &model.Room{
		ID:              room.ID,
		HostID:          room.HostID,
		Name:            room.Name,
		SubjectID:       room.SubjectID,
		IsActive:        room.IsActive,
		MaxParticipants: room.MaxParticipants,
		CreatedAt:       room.CreatedAt.UTC(),
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	return &domain.Room{
		ID:              room.ID,
		HostID:          room.HostID,
		Name:            room.Name,
		SubjectID:       room.SubjectID,
		IsActive:        room.IsActive,
		MaxParticipants: room.MaxParticipants,
		CreatedAt:       room.CreatedAt.UTC(),
	}
}

func toModelParticipant(p *domain.Participant) *model.Participant {
	return &model.Participant{
		ID:                   p.ID,
		RoomID:               p.RoomID,
		UserID:               p.UserID,
		SubjectID:            p.SubjectID,
		JoinedAt:             p.JoinedAt.UTC(),
		LeftAt:               p.LeftAt,
		IsMuted:              p.IsMuted,
		IsCameraOff:          p.IsCameraOff,
		IsSharingScreen:      p.IsSharingScreen,
		StudyDurationSeconds: p.StudyDurationSeconds,
	}
}

func toDomainParticipant(p *model.Participant) *domain.Participant {
	return &domain.Participant{
		ID:                   p.ID,
		RoomID:               p.RoomID,
		UserID:               p.UserID,
		SubjectID:            p.SubjectID,
		JoinedAt:             p.JoinedAt.UTC(),
		LeftAt:               p.LeftAt,
		IsMuted:              p.IsMuted,
		IsCameraOff:          p.IsCameraOff,
		IsSharingScreen:      p.IsSharingScreen,
		StudyDurationSeconds: p.StudyDurationSeconds,
	}
}

func toModelStudySession(s *domain.StudySession) *model.StudySession {
	return &model.StudySession{
		ID:              s.ID,
		UserID:          s.UserID,
		SubjectID:       s.SubjectID,
		Kind:            s.Kind,
		DurationSeconds: s.DurationSeconds,
		Completed:       s.Completed,
		CreatedAt:       s.CreatedAt.UTC(),
	}
}
