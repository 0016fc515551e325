package chathub

import (
	"container/list"
	"math"
	"time"

	"driftchat/backend/internal/config"
	"driftchat/backend/internal/models"
)

// BehaviorEvent is a lifecycle event that moves a participant's reputation.
type BehaviorEvent int

const (
	ChatStarted BehaviorEvent = iota
	SkippedBySelf
	SkippedByPeer
	Disconnected
)

func (e BehaviorEvent) String() string {
	switch e {
	case ChatStarted:
		return "chat_started"
	case SkippedBySelf:
		return "skipped"
	case SkippedByPeer:
		return "partner_skipped"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

type profileEntry struct {
	id      models.ParticipantID
	profile *models.BehaviorProfile
}

// Registry keeps a BehaviorProfile per participant. It is bounded two ways: profiles
// not seen for longer than the retention window are dropped by Evict, and once the
// registry holds maxProfiles entries the least recently seen one is dropped on insert.
// Profiles for which pinned returns true (queued or roomed participants) are never dropped.
type Registry struct {
	entries     map[models.ParticipantID]*list.Element
	recency     *list.List // front = most recently touched
	retention   time.Duration
	maxProfiles int
	now         func() time.Time
	pinned      func(models.ParticipantID) bool
}

// NewRegistry creates a registry. retention <= 0 disables the age sweep and
// maxProfiles <= 0 disables the size cap.
func NewRegistry(retention time.Duration, maxProfiles int, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries:     make(map[models.ParticipantID]*list.Element),
		recency:     list.New(),
		retention:   retention,
		maxProfiles: maxProfiles,
		now:         now,
		pinned:      func(models.ParticipantID) bool { return false },
	}
}

// SetPinned installs the predicate protecting active participants from eviction.
func (r *Registry) SetPinned(fn func(models.ParticipantID) bool) {
	if fn != nil {
		r.pinned = fn
	}
}

// GetOrCreateProfile returns the profile for id, creating it with defaults if absent.
func (r *Registry) GetOrCreateProfile(id models.ParticipantID) *models.BehaviorProfile {
	if el, ok := r.entries[id]; ok {
		r.recency.MoveToFront(el)
		return el.Value.(*profileEntry).profile
	}

	p := newProfile(r.now())
	r.entries[id] = r.recency.PushFront(&profileEntry{id: id, profile: p})
	r.enforceCap(id)
	return p
}

func newProfile(now time.Time) *models.BehaviorProfile {
	return &models.BehaviorProfile{
		ReputationScore: config.InitialReputation,
		LastSeenAt:      now,
		CreatedAt:       now,
		Fresh:           true,
	}
}

// Lookup returns the profile without creating one or touching its recency.
func (r *Registry) Lookup(id models.ParticipantID) (*models.BehaviorProfile, bool) {
	el, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*profileEntry).profile, true
}

// RecordEvent applies the reputation rule for ev and stamps lastSeenAt.
func (r *Registry) RecordEvent(id models.ParticipantID, ev BehaviorEvent) {
	p := r.GetOrCreateProfile(id)
	switch ev {
	case ChatStarted:
		p.TotalChats++
		p.ReputationScore += config.ChatStartedReward
	case SkippedBySelf:
		p.Skips++
		p.ReputationScore += config.SkippedBySelfPenalty
	case SkippedByPeer:
		p.ReputationScore += config.SkippedByPeerReward
	case Disconnected:
		p.ReputationScore += config.DisconnectPenalty
	}
	r.settle(p)
}

// RecordReport counts a report against id and subtracts penalty from its reputation.
func (r *Registry) RecordReport(id models.ParticipantID, penalty float64) {
	p := r.GetOrCreateProfile(id)
	p.Reports++
	p.ReputationScore -= penalty
	r.settle(p)
}

// RecordChatDuration folds a finished chat into the running average duration.
func (r *Registry) RecordChatDuration(id models.ParticipantID, d time.Duration) {
	p := r.GetOrCreateProfile(id)
	if p.TotalChats <= 1 || p.AverageChatDuration == 0 {
		p.AverageChatDuration = d
		return
	}
	n := time.Duration(p.TotalChats)
	p.AverageChatDuration = (p.AverageChatDuration*(n-1) + d) / n
}

func (r *Registry) settle(p *models.BehaviorProfile) {
	p.ReputationScore = clampReputation(p.ReputationScore)
	p.LastSeenAt = r.now()
	p.Fresh = false
}

func clampReputation(v float64) float64 {
	if math.IsNaN(v) {
		return config.InitialReputation
	}
	return math.Max(config.MinReputation, math.Min(config.MaxReputation, v))
}

// ComputeWaitPriority is an informational priority for status output; the matcher
// does not rank by it. It is read-only: an untracked id is scored with default values.
func (r *Registry) ComputeWaitPriority(id models.ParticipantID, joinTime time.Time) float64 {
	p, ok := r.Lookup(id)
	if !ok {
		p = newProfile(r.now())
	}

	priority := 1.0
	if p.Fresh {
		priority += config.NewProfileBonus
	}
	waited := r.now().Sub(joinTime)
	if waited > 0 {
		priority += math.Min(float64(waited)/float64(config.WaitPriorityUnit), config.WaitPriorityMax)
	}
	priority += p.ReputationScore * config.ReputationPriorityK
	return priority
}

// Evict drops profiles idle for longer than the retention window. It returns the
// number of profiles removed.
func (r *Registry) Evict() int {
	if r.retention <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.retention)
	removed := 0
	for el := r.recency.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*profileEntry)
		if entry.profile.LastSeenAt.Before(cutoff) && !r.pinned(entry.id) {
			r.recency.Remove(el)
			delete(r.entries, entry.id)
			removed++
		}
		el = prev
	}
	return removed
}

func (r *Registry) enforceCap(keep models.ParticipantID) {
	if r.maxProfiles <= 0 {
		return
	}
	for el := r.recency.Back(); el != nil && len(r.entries) > r.maxProfiles; {
		prev := el.Prev()
		entry := el.Value.(*profileEntry)
		if entry.id != keep && !r.pinned(entry.id) {
			r.recency.Remove(el)
			delete(r.entries, entry.id)
		}
		el = prev
	}
}

// Len returns the number of tracked profiles.
func (r *Registry) Len() int { return len(r.entries) }

// Stats aggregates all tracked profiles.
func (r *Registry) Stats() models.BehaviorStats {
	stats := models.BehaviorStats{TrackedUsers: len(r.entries)}
	if stats.TrackedUsers == 0 {
		return stats
	}
	activeSince := r.now().Add(-config.ActiveWindow)
	total := 0.0
	for _, el := range r.entries {
		p := el.Value.(*profileEntry).profile
		total += p.ReputationScore
		if p.TotalChats == 0 {
			stats.NewUsers++
		}
		if p.LastSeenAt.After(activeSince) {
			stats.ActiveUsers++
		}
	}
	stats.AverageReputation = total / float64(stats.TrackedUsers)
	return stats
}
