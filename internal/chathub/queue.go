package chathub

import (
	"container/list"
	"time"

	"driftchat/backend/internal/models"
)

// WaitQueue is an insertion-ordered set of waiting participants of one chat type.
type WaitQueue struct {
	chatType models.ChatType
	order    *list.List
	index    map[models.ParticipantID]*list.Element
}

func newWaitQueue(t models.ChatType) *WaitQueue {
	return &WaitQueue{
		chatType: t,
		order:    list.New(),
		index:    make(map[models.ParticipantID]*list.Element),
	}
}

// Len is O(1).
func (q *WaitQueue) Len() int { return len(q.index) }

// Get returns the waiting entry for id.
func (q *WaitQueue) Get(id models.ParticipantID) (*models.Participant, bool) {
	el, ok := q.index[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*models.Participant), true
}

func (q *WaitQueue) push(p *models.Participant) {
	q.index[p.ID] = q.order.PushBack(p)
}

func (q *WaitQueue) remove(id models.ParticipantID) bool {
	el, ok := q.index[id]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.index, id)
	return true
}

// Each visits waiters in insertion order until fn returns false.
func (q *WaitQueue) Each(fn func(p *models.Participant) bool) {
	for el := q.order.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(*models.Participant)) {
			return
		}
	}
}

// IDs returns the waiting identifiers in insertion order.
func (q *WaitQueue) IDs() []models.ParticipantID {
	ids := make([]models.ParticipantID, 0, q.Len())
	q.Each(func(p *models.Participant) bool {
		ids = append(ids, p.ID)
		return true
	})
	return ids
}

// QueueSnapshot holds the depth of both queues.
type QueueSnapshot struct {
	Text  int `json:"text"`
	Video int `json:"video"`
}

// QueueManager owns the text and video waiting pools. An identifier is in at most
// one of them.
type QueueManager struct {
	text  *WaitQueue
	video *WaitQueue
	now   func() time.Time
}

func NewQueueManager(now func() time.Time) *QueueManager {
	if now == nil {
		now = time.Now
	}
	return &QueueManager{
		text:  newWaitQueue(models.ChatTypeText),
		video: newWaitQueue(models.ChatTypeVideo),
		now:   now,
	}
}

// Queue returns the pool for t.
func (m *QueueManager) Queue(t models.ChatType) *WaitQueue {
	if t == models.ChatTypeVideo {
		return m.video
	}
	return m.text
}

// Enqueue puts p at the tail of the queue for p.ChatType, removing any earlier entry
// for the same identifier from both queues first. JoinTime is set to now.
func (m *QueueManager) Enqueue(p models.Participant) *models.Participant {
	m.Dequeue(p.ID)
	p.JoinTime = m.now()
	entry := &p
	m.Queue(p.ChatType).push(entry)
	return entry
}

// Dequeue removes id from both queues. It reports whether anything was removed.
func (m *QueueManager) Dequeue(id models.ParticipantID) bool {
	removedText := m.text.remove(id)
	removedVideo := m.video.remove(id)
	return removedText || removedVideo
}

// QueueDepth returns the size of the queue for t.
func (m *QueueManager) QueueDepth(t models.ChatType) int {
	return m.Queue(t).Len()
}

// Snapshot returns both depths without mutating anything.
func (m *QueueManager) Snapshot() QueueSnapshot {
	return QueueSnapshot{Text: m.text.Len(), Video: m.video.Len()}
}

// Waiting returns the queue id is in, if any.
func (m *QueueManager) Waiting(id models.ParticipantID) (*models.Participant, bool) {
	if p, ok := m.text.Get(id); ok {
		return p, true
	}
	return m.video.Get(id)
}

// Expired returns waiters whose wait exceeds maxWait, oldest first per queue.
func (m *QueueManager) Expired(maxWait time.Duration) []models.Participant {
	if maxWait <= 0 {
		return nil
	}
	cutoff := m.now().Add(-maxWait)
	var expired []models.Participant
	for _, q := range []*WaitQueue{m.text, m.video} {
		q.Each(func(p *models.Participant) bool {
			if p.JoinTime.Before(cutoff) {
				expired = append(expired, *p)
				return true
			}
			// later entries joined later
			return false
		})
	}
	return expired
}
