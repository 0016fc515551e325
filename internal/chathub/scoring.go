package chathub

import (
	"math"
	"time"

	"driftchat/backend/internal/config"
	"driftchat/backend/internal/models"

	"github.com/samber/lo"
)

// Candidate is a waiting participant together with its behaviour profile.
type Candidate struct {
	Participant *models.Participant
	Profile     *models.BehaviorProfile
}

// ScoreBreakdown is the composite pairing score for one candidate pair.
type ScoreBreakdown struct {
	Match         float64 `json:"match"`
	Compatibility float64 `json:"compatibility"`
	Priority      float64 `json:"priority"`
}

// Total is the ranking key used by the matcher.
func (s ScoreBreakdown) Total() float64 {
	return s.Match + s.Compatibility + s.Priority
}

// Score computes all three components for a and b.
func Score(a, b Candidate, t models.ChatType, now time.Time) ScoreBreakdown {
	return ScoreBreakdown{
		Match:         MatchScore(a, b, t, now),
		Compatibility: Compatibility(a, b),
		Priority:      PriorityBonus(a, b, now),
	}
}

// MatchScore is symmetric in a and b and never negative.
func MatchScore(a, b Candidate, t models.ChatType, now time.Time) float64 {
	score := config.BaseMatchScore

	avgWait := (now.Sub(a.Participant.JoinTime) + now.Sub(b.Participant.JoinTime)) / 2
	if avgWait > 0 {
		score += math.Min(float64(avgWait)/float64(config.WaitPriorityUnit), config.WaitScoreMax)
	}

	if t == models.ChatTypeVideo {
		score += config.VideoBonus
	}

	pa, pb := a.Profile, b.Profile
	experienceDiff := math.Abs(float64(pa.TotalChats - pb.TotalChats))
	score += math.Max(0, 1-experienceDiff/config.ExperienceSpan)

	behaviorDiff := math.Abs(pa.ReputationScore - pb.ReputationScore)
	score += (1 - behaviorDiff) * config.BehaviorSimilarityK

	if pa.Reports > config.ReportedThreshold || pb.Reports > config.ReportedThreshold {
		score += config.ReportedPenalty
	}
	if pa.Skips > config.SkipperThreshold || pb.Skips > config.SkipperThreshold {
		score += config.SkipperPenalty
	}

	ma, mb := a.Participant.Metadata, b.Participant.Metadata
	if ma.Region != "" && ma.Region == mb.Region {
		score += config.RegionBonus
	}
	if ma.Language != "" && ma.Language == mb.Language {
		score += config.LanguageBonus
	}
	if ma.Timezone != nil && mb.Timezone != nil && math.Abs(*ma.Timezone-*mb.Timezone) <= config.TimezoneWindowHours {
		score += config.TimezoneBonus
	}

	return math.Max(0, score)
}

// Compatibility scores declared attributes and chat history, capped at 2.
func Compatibility(a, b Candidate) float64 {
	compat := 0.0
	ma, mb := a.Participant.Metadata, b.Participant.Metadata

	if ma.Age != nil && mb.Age != nil && *ma.Age > 0 && *mb.Age > 0 {
		ageDiff := math.Abs(float64(*ma.Age - *mb.Age))
		compat += math.Max(0, 1-ageDiff/config.AgeSpan)
	}

	if len(ma.Interests) > 0 && len(mb.Interests) > 0 {
		common := len(SharedInterests(ma, mb))
		largest := max(len(ma.Interests), len(mb.Interests))
		compat += float64(common) / float64(largest) * config.InterestOverlapK
	}

	durationDiff := (a.Profile.AverageChatDuration - b.Profile.AverageChatDuration).Abs()
	compat += math.Max(0, 1-float64(durationDiff)/float64(config.ChatDurationSpan))

	return math.Min(compat, config.CompatibilityCap)
}

// PriorityBonus favours new, well-behaved and recently active participants, capped at 1.
func PriorityBonus(a, b Candidate, now time.Time) float64 {
	priority := 0.0
	for _, p := range []*models.BehaviorProfile{a.Profile, b.Profile} {
		if p.TotalChats == 0 {
			priority += config.NewUserPairBonus
		}
		if p.ReputationScore > config.GoodReputationMinimum {
			priority += config.GoodUserBonus
		}
		if now.Sub(p.LastSeenAt) < config.ActiveWindow {
			priority += config.ActiveUserBonus
		}
	}
	return math.Min(priority, config.PriorityCap)
}

// SharedInterests returns the interests both sides declared.
func SharedInterests(a, b models.Metadata) []string {
	return lo.Intersect(a.Interests, b.Interests)
}
