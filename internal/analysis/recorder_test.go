package analysis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"driftchat/backend/internal/analysis"
	"driftchat/backend/internal/complaint"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var eventTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// TestRecorderOpensSession verifies room_opened becomes a session row and a publish.
func TestRecorderOpensSession(t *testing.T) {
	// Arrange
	store := new(MockStorage)
	recorder := analysis.NewRecorder(store, complaint.NewService(store), 4)
	event := models.LifecycleEvent{
		Kind:      models.EventRoomOpened,
		RoomID:    "room-1",
		ChatType:  models.ChatTypeVideo,
		Members:   []models.ParticipantID{"A", "B"},
		Interests: []string{"go"},
		At:        eventTime,
	}
	store.On("OpenSession", mock.Anything, mock.MatchedBy(func(s *models.ChatSession) bool {
		return s.RoomToken == "room-1" && s.ChatType == "video" && s.User1ID == "A" && s.User2ID == "B" &&
			len(s.SharedInterests) == 1 && s.StartedAt.Equal(eventTime)
	})).Return(nil).Once()
	store.On("PublishEvent", mock.Anything, event).Return(nil).Once()

	// Act
	recorder.Handle(context.Background(), event)

	// Assert
	store.AssertExpectations(t)
}

// TestRecorderClosesSession verifies room_closed carries duration and reason.
func TestRecorderClosesSession(t *testing.T) {
	store := new(MockStorage)
	recorder := analysis.NewRecorder(store, nil, 4)
	event := models.LifecycleEvent{
		Kind:     models.EventRoomClosed,
		RoomID:   "room-1",
		Reason:   "skipped",
		At:       eventTime,
		Duration: 42 * time.Second,
	}
	store.On("CloseSession", mock.Anything, models.RoomToken("room-1"), eventTime, 42*time.Second, "skipped").Return(nil).Once()
	store.On("PublishEvent", mock.Anything, event).Return(nil).Once()

	recorder.Handle(context.Background(), event)

	store.AssertExpectations(t)
}

// TestRecorderFilesReport verifies report_filed goes through the complaint service.
func TestRecorderFilesReport(t *testing.T) {
	store := new(MockStorage)
	recorder := analysis.NewRecorder(store, complaint.NewService(store), 4)
	event := models.LifecycleEvent{
		Kind:    models.EventReportFiled,
		RoomID:  "room-1",
		Members: []models.ParticipantID{"A", "B"},
		Reason:  "medium",
		At:      eventTime,
	}
	store.On("SaveReport", mock.Anything, mock.MatchedBy(func(r *models.Report) bool {
		return r.ReporterID == "A" && r.TargetID == "B" && r.Reason == "medium"
	})).Return(nil).Once()
	store.On("PublishEvent", mock.Anything, event).Return(nil).Once()

	recorder.Handle(context.Background(), event)

	store.AssertExpectations(t)
}

// TestRecorderToleratesMissingBackends verifies an unconfigured store is not fatal.
func TestRecorderToleratesMissingBackends(t *testing.T) {
	store := new(MockStorage)
	recorder := analysis.NewRecorder(store, nil, 4)
	event := models.LifecycleEvent{Kind: models.EventRoomClosed, RoomID: "room-1", At: eventTime}
	store.On("CloseSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ErrNoDatabase)
	store.On("PublishEvent", mock.Anything, mock.Anything).Return(errors.Join(errors.New("publish"), storage.ErrNoRedis))

	assert.NotPanics(t, func() { recorder.Handle(context.Background(), event) })
	store.AssertNumberOfCalls(t, "PublishEvent", 1)
}

// TestRecorderDropsWhenFull verifies Emit never blocks.
func TestRecorderDropsWhenFull(t *testing.T) {
	recorder := analysis.NewRecorder(new(MockStorage), nil, 1)

	recorder.Emit(models.LifecycleEvent{Kind: models.EventRoomOpened})
	recorder.Emit(models.LifecycleEvent{Kind: models.EventRoomOpened})
	recorder.Emit(models.LifecycleEvent{Kind: models.EventRoomOpened})

	assert.Equal(t, int64(2), recorder.Dropped())
}

// TestRecorderRunDrainsEvents verifies the background loop handles queued events.
func TestRecorderRunDrainsEvents(t *testing.T) {
	// Arrange
	store := new(MockStorage)
	recorder := analysis.NewRecorder(store, nil, 4)
	handled := make(chan struct{})
	store.On("CloseSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("PublishEvent", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { close(handled) }).Once()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	go recorder.Run(ctx)
	recorder.Emit(models.LifecycleEvent{Kind: models.EventRoomClosed, RoomID: "room-1"})

	// Assert
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled")
	}
}
