package analysis

import (
	"context"
	"errors"
	"sync/atomic"

	"driftchat/backend/internal/complaint"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// Recorder persists and publishes hub lifecycle events on its own goroutine so the
// hub never waits on I/O.
type Recorder struct {
	events     chan models.LifecycleEvent
	store      storage.Storage
	complaints *complaint.Service
	dropped    atomic.Int64
	log        *logrus.Entry
}

func NewRecorder(store storage.Storage, complaints *complaint.Service, buffer int) *Recorder {
	return &Recorder{
		events:     make(chan models.LifecycleEvent, buffer),
		store:      store,
		complaints: complaints,
		log:        logrus.WithField("component", "recorder"),
	}
}

// Emit queues an event. When the buffer is full the event is dropped.
func (r *Recorder) Emit(event models.LifecycleEvent) {
	select {
	case r.events <- event:
	default:
		n := r.dropped.Add(1)
		r.log.WithFields(logrus.Fields{"kind": event.Kind, "dropped_total": n}).Warn("Event buffer full, dropping event")
	}
}

// Dropped returns how many events Emit has discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run drains events until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.events:
			r.Handle(ctx, event)
		}
	}
}

// Handle writes one event to the database and publishes it to Redis. A missing
// backend is not an error.
func (r *Recorder) Handle(ctx context.Context, event models.LifecycleEvent) {
	entry := r.log.WithFields(logrus.Fields{"kind": event.Kind, "room_token": event.RoomID})

	if err := r.persist(ctx, event); err != nil && !errors.Is(err, storage.ErrNoDatabase) {
		entry.WithError(err).Error("Failed to persist event")
	}
	if err := r.store.PublishEvent(ctx, event); err != nil && !errors.Is(err, storage.ErrNoRedis) {
		entry.WithError(err).Error("Failed to publish event")
	}
}

func (r *Recorder) persist(ctx context.Context, event models.LifecycleEvent) error {
	switch event.Kind {
	case models.EventRoomOpened:
		session := &models.ChatSession{
			RoomToken:       string(event.RoomID),
			ChatType:        string(event.ChatType),
			SharedInterests: event.Interests,
			StartedAt:       event.At,
		}
		if len(event.Members) == 2 {
			session.User1ID = string(event.Members[0])
			session.User2ID = string(event.Members[1])
		}
		return r.store.OpenSession(ctx, session)

	case models.EventRoomClosed:
		return r.store.CloseSession(ctx, event.RoomID, event.At, event.Duration, event.Reason)

	case models.EventReportFiled:
		if len(event.Members) != 2 || r.complaints == nil {
			return nil
		}
		_, err := r.complaints.File(ctx, event.Members[0], event.Members[1], event.RoomID, event.Reason)
		return err
	}
	return nil
}
