package config

import "time"

const (
	// Reputation
	InitialReputation     = 0.5
	MinReputation         = 0.0
	MaxReputation         = 1.0
	ChatStartedReward     = 0.10
	SkippedBySelfPenalty  = -0.05
	SkippedByPeerReward   = 0.02
	DisconnectPenalty     = -0.01
	GoodReputationMinimum = 0.7

	// Wait priority (informational)
	NewProfileBonus     = 0.1
	WaitPriorityMax     = 0.5
	WaitPriorityUnit    = 10 * time.Second
	ReputationPriorityK = 0.2

	// Match score
	BaseMatchScore      = 1.0
	WaitScoreMax        = 1.0
	VideoBonus          = 0.5
	ExperienceSpan      = 10.0
	BehaviorSimilarityK = 0.6
	ReportedPenalty     = -0.3
	ReportedThreshold   = 1
	SkipperPenalty      = -0.2
	SkipperThreshold    = 5
	RegionBonus         = 0.3
	LanguageBonus       = 0.4
	TimezoneBonus       = 0.2
	TimezoneWindowHours = 2.0

	// Compatibility
	AgeSpan          = 20.0
	InterestOverlapK = 0.5
	ChatDurationSpan = 5 * time.Minute
	CompatibilityCap = 2.0

	// Priority bonus
	NewUserPairBonus = 0.3
	GoodUserBonus    = 0.2
	ActiveUserBonus  = 0.1
	ActiveWindow     = 5 * time.Minute
	PriorityCap      = 1.0

	// Recommendations
	QueueOverloadRatio    = 0.8
	LowReputationAverage  = 0.3
	LowSuccessRatePercent = 70.0
)

// ReportWeights is the reputation penalty applied to a reported partner, by reason.
// Unknown reasons fall back to "low".
var ReportWeights = map[string]float64{
	"low":      0.05,
	"medium":   0.1,
	"critical": 0.25,
}
