package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"driftchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Канали Redis.
const (
	EventsChannel       = "chat:events"
	AnnouncementChannel = "chat:announce"
)

var (
	ErrNoDatabase = errors.New("storage: database not configured")
	ErrNoRedis    = errors.New("storage: redis not configured")
)

// Storage - бекенд для аналітики та розсилки. Рушій підбору нічого звідси
// не зчитує назад.
type Storage interface {
	OpenSession(ctx context.Context, session *models.ChatSession) error
	CloseSession(ctx context.Context, token models.RoomToken, endedAt time.Time, duration time.Duration, reason string) error
	SaveReport(ctx context.Context, report *models.Report) error

	RecentSessions(ctx context.Context, limit int) ([]models.ChatSession, error)
	RecentReports(ctx context.Context, limit int) ([]models.Report, error)

	PublishEvent(ctx context.Context, event models.LifecycleEvent) error
	PublishAnnouncement(ctx context.Context, text string) error
	SubscribeAnnouncements(ctx context.Context) (<-chan string, error)
}

// Service реалізує Storage на Postgres (gorm) та Redis. Будь-який з них може бути nil,
// тоді відповідні виклики повертають ErrNoDatabase або ErrNoRedis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *logrus.Entry
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		log:   logrus.WithField("component", "storage"),
	}
}

// Migrate створює або оновлює таблиці аналітики.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.ChatSession{}, &models.Report{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// OpenSession зберігає запис нової кімнати в PostgreSQL
func (s *Service) OpenSession(ctx context.Context, session *models.ChatSession) error {
	if s.DB == nil {
		return ErrNoDatabase
	}
	session.IsActive = true
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("open session %s: %w", session.RoomToken, err)
	}
	return nil
}

// CloseSession закриває сесію, встановлюючи IsActive = false та EndedAt
func (s *Service) CloseSession(ctx context.Context, token models.RoomToken, endedAt time.Time, duration time.Duration, reason string) error {
	if s.DB == nil {
		return ErrNoDatabase
	}
	err := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("room_token = ?", string(token)).
		Updates(map[string]interface{}{
			"is_active":   false,
			"ended_at":    endedAt,
			"duration_ms": duration.Milliseconds(),
			"end_reason":  reason,
		}).Error
	if err != nil {
		return fmt.Errorf("close session %s: %w", token, err)
	}
	return nil
}

// SaveReport зберігає скаргу; статус за замовчуванням "new"
func (s *Service) SaveReport(ctx context.Context, report *models.Report) error {
	if s.DB == nil {
		return ErrNoDatabase
	}
	if report.Status == "" {
		report.Status = "new"
	}
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("save report for room %s: %w", report.RoomToken, err)
	}
	return nil
}

// RecentSessions повертає останні сесії, найновіші першими.
func (s *Service) RecentSessions(ctx context.Context, limit int) ([]models.ChatSession, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}
	var sessions []models.ChatSession
	if err := s.DB.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	return sessions, nil
}

// RecentReports повертає останні скарги, найновіші першими.
func (s *Service) RecentReports(ctx context.Context, limit int) ([]models.Report, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}
	var reports []models.Report
	if err := s.DB.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	return reports, nil
}

// PublishEvent публікує подію життєвого циклу як JSON в Redis Pub/Sub
func (s *Service) PublishEvent(ctx context.Context, event models.LifecycleEvent) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(ctx, EventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Kind, err)
	}
	return nil
}

// PublishAnnouncement надсилає текст оператора всім інстансам сервера.
func (s *Service) PublishAnnouncement(ctx context.Context, text string) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	if err := s.Redis.Publish(ctx, AnnouncementChannel, text).Err(); err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}
	return nil
}

// SubscribeAnnouncements транслює оголошення, доки ctx не скасовано.
func (s *Service) SubscribeAnnouncements(ctx context.Context) (<-chan string, error) {
	if s.Redis == nil {
		return nil, ErrNoRedis
	}
	pubsub := s.Redis.Subscribe(ctx, AnnouncementChannel)
	// Чекаємо підтвердження підписки, щоб не втратити ранні публікації
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", AnnouncementChannel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer pubsub.Close()
		defer s.log.Debug("Announcement subscription closed")

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
