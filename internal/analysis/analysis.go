// Package analysis turns hub state into operator-facing numbers and records
// lifecycle events for later inspection.
package analysis

import (
	"driftchat/backend/internal/config"
	"driftchat/backend/internal/models"
)

// GetWeight returns the reputation penalty for a report reason.
// Unknown reasons weigh as "low".
func GetWeight(reason string) float64 {
	if w, ok := config.ReportWeights[reason]; ok {
		return w
	}
	return config.ReportWeights["low"]
}

// Recommendation is one operator hint derived from a status snapshot.
type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Recommend inspects queue balance, reputation and pairing success.
func Recommend(status models.Status) []Recommendation {
	recs := []Recommendation{}

	waiting := status.TextQueue + status.VideoQueue
	if waiting > 0 {
		if float64(status.TextQueue)/float64(waiting) > config.QueueOverloadRatio {
			recs = append(recs, Recommendation{
				Type:     "queue_balance",
				Message:  "Text queue is overloaded. Consider promoting video chat.",
				Priority: "medium",
			})
		}
		if float64(status.VideoQueue)/float64(waiting) > config.QueueOverloadRatio {
			recs = append(recs, Recommendation{
				Type:     "queue_balance",
				Message:  "Video queue is overloaded. Consider promoting text chat.",
				Priority: "medium",
			})
		}
	}

	if status.Behavior.TrackedUsers > 0 && status.Behavior.AverageReputation < config.LowReputationAverage {
		recs = append(recs, Recommendation{
			Type:     "behavior",
			Message:  "Low average behavior score. Consider implementing stricter matching.",
			Priority: "high",
		})
	}

	if status.Metrics.SuccessRate() < config.LowSuccessRatePercent {
		recs = append(recs, Recommendation{
			Type:     "performance",
			Message:  "Low success rate. Algorithm may need optimization.",
			Priority: "high",
		})
	}
	return recs
}

// Performance is the payload of /performance.
type Performance struct {
	InstantPairingRate float64 `json:"instant_pairing_rate"`
	AverageWaitTimeMs  float64 `json:"average_wait_time_ms"`
	TotalPairings      int     `json:"total_pairings"`
	SuccessRate        float64 `json:"success_rate"`
}

// Summarize computes Performance from a snapshot. The instant pairing rate is the
// share of engaged participants that currently sit in a room.
func Summarize(status models.Status) Performance {
	perf := Performance{
		InstantPairingRate: 100,
		AverageWaitTimeMs:  status.Metrics.AverageWaitTimeMs,
		TotalPairings:      status.Metrics.TotalPairings,
		SuccessRate:        status.Metrics.SuccessRate(),
	}
	waiting := status.TextQueue + status.VideoQueue
	if waiting > 0 {
		roomed := float64(status.ActiveRooms * 2)
		perf.InstantPairingRate = roomed / (roomed + float64(waiting)) * 100
	}
	return perf
}

// Analytics is the payload of /analytics.
type Analytics struct {
	models.Status
	SuccessRate     float64          `json:"success_rate"`
	Recommendations []Recommendation `json:"recommendations"`
}

func BuildAnalytics(status models.Status) Analytics {
	return Analytics{
		Status:          status,
		SuccessRate:     status.Metrics.SuccessRate(),
		Recommendations: Recommend(status),
	}
}

// AlgorithmVersion is reported by /algorithm-health.
const AlgorithmVersion = "2.0.0"

// AlgorithmFeatures lists the matching capabilities reported by /algorithm-health.
var AlgorithmFeatures = []string{
	"Advanced multi-criteria matching",
	"Behavior-based compatibility",
	"Priority-based pairing",
	"Cross-queue notifications",
	"Real-time analytics",
}

// AlgorithmHealth is the payload of /algorithm-health.
type AlgorithmHealth struct {
	Version         string           `json:"version"`
	Features        []string         `json:"features"`
	Performance     Performance      `json:"performance"`
	Recommendations []Recommendation `json:"recommendations"`
}

func CheckAlgorithm(status models.Status) AlgorithmHealth {
	return AlgorithmHealth{
		Version:         AlgorithmVersion,
		Features:        AlgorithmFeatures,
		Performance:     Summarize(status),
		Recommendations: Recommend(status),
	}
}

type QueueReport struct {
	TextQueue  int `json:"text_queue"`
	VideoQueue int `json:"video_queue"`
	TotalUsers int `json:"total_users"`
}

type PairingReport struct {
	AverageMatchTimeMs float64 `json:"average_match_time_ms"`
	SuccessRate        float64 `json:"success_rate"`
	TotalPairings      int     `json:"total_pairings"`
}

// SelfTest is the payload of /test-algorithm: a condensed view of queues, pairing
// and reputation, with the recommendations that follow from them.
type SelfTest struct {
	Queues          QueueReport          `json:"queue_status"`
	Pairing         PairingReport        `json:"algorithm_performance"`
	Behavior        models.BehaviorStats `json:"user_behavior"`
	Recommendations []Recommendation     `json:"recommendations"`
}

// RunSelfTest evaluates status. TotalUsers counts waiting participants only.
func RunSelfTest(status models.Status) SelfTest {
	return SelfTest{
		Queues: QueueReport{
			TextQueue:  status.TextQueue,
			VideoQueue: status.VideoQueue,
			TotalUsers: status.TextQueue + status.VideoQueue,
		},
		Pairing: PairingReport{
			AverageMatchTimeMs: status.Metrics.AverageWaitTimeMs,
			SuccessRate:        status.Metrics.SuccessRate(),
			TotalPairings:      status.Metrics.TotalPairings,
		},
		Behavior:        status.Behavior,
		Recommendations: Recommend(status),
	}
}
