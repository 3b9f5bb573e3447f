package service

import (
	"context"
	"log/slog"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/internal/repository"
)

type SubjectService struct {
	subjects repository.SubjectRepository
	log      *slog.Logger
}

func NewSubjectService(subjects repository.SubjectRepository, log *slog.Logger) *SubjectService {
	if log == nil {
		log = slog.Default()
	}
	return &SubjectService{subjects: subjects, log: log}
}

func (s *SubjectService) ListSubjects(ctx context.Context) ([]*domain.Subject, error) {
	const op = "service.subject.list"
	s.log.With(slog.String("op", op))
	return s.subjects.List(ctx)
}
