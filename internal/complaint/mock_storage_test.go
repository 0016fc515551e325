package complaint_test

import (
	"context"
	"time"

	"driftchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) OpenSession(ctx context.Context, session *models.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockStorage) CloseSession(ctx context.Context, token models.RoomToken, endedAt time.Time, duration time.Duration, reason string) error {
	args := m.Called(ctx, token, endedAt, duration, reason)
	return args.Error(0)
}

func (m *MockStorage) SaveReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockStorage) RecentSessions(ctx context.Context, limit int) ([]models.ChatSession, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.ChatSession), args.Error(1)
}

func (m *MockStorage) RecentReports(ctx context.Context, limit int) ([]models.Report, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockStorage) PublishEvent(ctx context.Context, event models.LifecycleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStorage) PublishAnnouncement(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockStorage) SubscribeAnnouncements(ctx context.Context) (<-chan string, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(<-chan string)
	return ch, args.Error(1)
}
