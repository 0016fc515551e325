package chathub

import (
	"time"

	"driftchat/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// Outcome - результат спроби підбору пари.
type Outcome int

const (
	// Paired: двоє учасників вийшли з черг і мають потрапити в кімнату.
	Paired Outcome = iota
	// CrossQueue: пари немає, але в черзі іншого типу чату хтось чекає.
	CrossQueue
	// NoUsers: учасник сам в обох чергах.
	NoUsers
	// Waiting: учасник залишається в черзі розміру QueueSize.
	Waiting
)

// MatchResult описує одну спробу підбору.
type MatchResult struct {
	Outcome Outcome

	// Заповнюється при Outcome == Paired. Initiator - учасник, що ініціював спробу.
	Initiator models.Participant
	Receiver  models.Participant
	Score     ScoreBreakdown

	AlternateType models.ChatType
	AlternateSize int
	QueueSize     int

	// Failed: кандидати були, але жодного не обрано.
	Failed bool
}

// MatcherService відповідає за алгоритм пошуку співрозмовників.
type MatcherService struct {
	Queues   *QueueManager
	Registry *Registry
	now      func() time.Time
	log      *logrus.Entry
}

// NewMatcherService створює новий Matcher.
func NewMatcherService(queues *QueueManager, registry *Registry, now func() time.Time) *MatcherService {
	if now == nil {
		now = time.Now
	}
	return &MatcherService{
		Queues:   queues,
		Registry: registry,
		now:      now,
		log:      logrus.WithField("component", "matcher"),
	}
}

// Attempt виконує один раунд підбору для id, який має чекати в черзі типу t.
// При знайденій парі обидва учасники видаляються з обох черг і для кожного
// фіксується ChatStarted ще до повернення з Attempt.
func (m *MatcherService) Attempt(id models.ParticipantID, t models.ChatType) MatchResult {
	primary := m.Queues.Queue(t)
	secondary := m.Queues.Queue(t.Opposite())

	m.log.WithFields(logrus.Fields{
		"participant_id": id,
		"chat_type":      t,
		"queue_size":     primary.Len(),
		"other_queue":    secondary.Len(),
	}).Debug("Attempting pairing")

	failed := false
	if primary.Len() >= 2 {
		if partner, score, ok := m.findBestMatch(id, t); ok {
			return m.pair(id, partner, t, score)
		}
		failed = true
	}

	// Учасник, якого повернув next_partner, не отримує no_users_available
	self, _ := primary.Get(id)

	var result MatchResult
	switch {
	case primary.Len() >= 1 && secondary.Len() >= 1:
		result = MatchResult{Outcome: CrossQueue, AlternateType: t.Opposite(), AlternateSize: secondary.Len(), QueueSize: primary.Len()}
	case primary.Len() == 1 && secondary.Len() == 0 && (self == nil || !self.Rejoining):
		result = MatchResult{Outcome: NoUsers, QueueSize: 1}
	default:
		result = MatchResult{Outcome: Waiting, QueueSize: primary.Len()}
	}
	result.Failed = failed
	return result
}

// findBestMatch оцінює всіх інших учасників у порядку додавання; перемагає перший
// кандидат з найвищим балом.
func (m *MatcherService) findBestMatch(id models.ParticipantID, t models.ChatType) (models.ParticipantID, ScoreBreakdown, bool) {
	queue := m.Queues.Queue(t)
	self, ok := queue.Get(id)
	if !ok {
		return "", ScoreBreakdown{}, false
	}
	current := Candidate{Participant: self, Profile: m.Registry.GetOrCreateProfile(id)}
	now := m.now()

	var (
		best      models.ParticipantID
		bestScore ScoreBreakdown
		found     bool
	)
	queue.Each(func(other *models.Participant) bool {
		if other.ID == id {
			return true // Не шукати пару із самим собою
		}
		candidate := Candidate{Participant: other, Profile: m.Registry.GetOrCreateProfile(other.ID)}
		score := Score(current, candidate, t, now)

		m.log.WithFields(logrus.Fields{
			"candidate": other.ID,
			"match":     score.Match,
			"compat":    score.Compatibility,
			"priority":  score.Priority,
			"total":     score.Total(),
		}).Debug("Scored candidate")

		if !found || score.Total() > bestScore.Total() {
			best, bestScore, found = other.ID, score, true
		}
		return true
	})
	return best, bestScore, found
}

func (m *MatcherService) pair(initiatorID, receiverID models.ParticipantID, t models.ChatType, score ScoreBreakdown) MatchResult {
	queue := m.Queues.Queue(t)
	initiator, _ := queue.Get(initiatorID)
	receiver, _ := queue.Get(receiverID)
	result := MatchResult{
		Outcome:   Paired,
		Initiator: *initiator,
		Receiver:  *receiver,
		Score:     score,
	}

	// Видалення обох користувачів із черги
	m.Queues.Dequeue(initiatorID)
	m.Queues.Dequeue(receiverID)

	m.Registry.RecordEvent(initiatorID, ChatStarted)
	m.Registry.RecordEvent(receiverID, ChatStarted)

	m.log.WithFields(logrus.Fields{
		"initiator": initiatorID,
		"receiver":  receiverID,
		"chat_type": t,
		"score":     score.Total(),
	}).Info("Match found")
	return result
}
