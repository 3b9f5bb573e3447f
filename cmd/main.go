package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/luciandrev/estudia_rooms/internal/api/http"
	"github.com/luciandrev/estudia_rooms/internal/config"
	"github.com/luciandrev/estudia_rooms/internal/realtime"
	"github.com/luciandrev/estudia_rooms/internal/repository"
	"github.com/luciandrev/estudia_rooms/internal/repository/model"
	"github.com/luciandrev/estudia_rooms/internal/rtc"
	"github.com/luciandrev/estudia_rooms/internal/service"
	"github.com/luciandrev/estudia_rooms/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		log.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Error("failed to connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	bus := realtime.NewRedisBus(rdb, log)

	userID := resolveUserID(cfg.User.ID, log)

	roomRepo := repository.NewPostgresRoomRepository(db, bus)
	participantRepo := repository.NewPostgresParticipantRepository(db, bus)
	sessionRepo := repository.NewPostgresStudySessionRepository(db)
	profileRepo := repository.NewPostgresProfileRepository(db)
	subjectRepo := repository.NewPostgresSubjectRepository(db)

	roomService := service.NewRoomService(
		userID,
		roomRepo,
		participantRepo,
		sessionRepo,
		profileRepo,
		bus,
		bus,
		rtc.NewPionFactory(cfg.WebRTC.STUNServers),
		rtc.NewSampleCapture(),
		service.RoomConfig{
			RewardThreshold: cfg.Session.RewardThreshold,
			Negotiation:     rtc.Config{NegotiationTimeout: cfg.WebRTC.NegotiationTimeout},
		},
		log,
	)
	subjectService := service.NewSubjectService(subjectRepo, log)

	if err := roomService.Start(context.Background()); err != nil {
		log.Error("failed to start room discovery", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := roomService.Stop(); err != nil {
			log.Error("failed to stop room discovery", slog.Any("error", err))
		}
	}()

	roomController := httpapi.NewRoomController(roomService)
	subjectController := httpapi.NewSubjectController(subjectService)

	router := httpapi.SetupRouter(roomController, subjectController, cfg.HTTP.AllowOrigins)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func resolveUserID(raw string, log *slog.Logger) uuid.UUID {
	if raw == "" {
		id := uuid.New()
		log.Warn("no user id configured, generated one", slog.String("user_id", id.String()))
		return id
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Error("invalid user id in config", slog.Any("error", err))
		os.Exit(1)
	}
	return id
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(
		&model.Room{},
		&model.Participant{},
		&model.StudySession{},
		&model.UserStats{},
		&model.Profile{},
		&model.Subject{},
	)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
