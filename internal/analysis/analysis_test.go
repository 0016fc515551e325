package analysis_test

import (
	"testing"

	"driftchat/backend/internal/analysis"
	"driftchat/backend/internal/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestGetWeight(t *testing.T) {
	assert.Equal(t, 0.05, analysis.GetWeight("low"))
	assert.Equal(t, 0.1, analysis.GetWeight("medium"))
	assert.Equal(t, 0.25, analysis.GetWeight("critical"))
	assert.Equal(t, 0.05, analysis.GetWeight("unheard-of"), "unknown reasons weigh as low")
}

// TestRecommendHealthyHub verifies a quiet, balanced hub gets no advice.
func TestRecommendHealthyHub(t *testing.T) {
	status := models.Status{TextQueue: 1, VideoQueue: 1}

	assert.Empty(t, analysis.Recommend(status))
}

// TestRecommendFlagsProblems covers each recommendation rule.
func TestRecommendFlagsProblems(t *testing.T) {
	// Arrange
	status := models.Status{
		TextQueue:  9,
		VideoQueue: 1,
		Behavior:   models.BehaviorStats{TrackedUsers: 10, AverageReputation: 0.2},
		Metrics:    models.Metrics{SuccessfulPairings: 1, FailedPairings: 3},
	}

	// Act
	recs := analysis.Recommend(status)

	// Assert
	types := lo.Map(recs, func(r analysis.Recommendation, _ int) string { return r.Type })
	assert.Equal(t, []string{"queue_balance", "behavior", "performance"}, types)
	assert.Contains(t, recs[0].Message, "Text queue is overloaded")
}

// TestRecommendIgnoresEmptyRegistry verifies no behaviour advice without tracked users.
func TestRecommendIgnoresEmptyRegistry(t *testing.T) {
	recs := analysis.Recommend(models.Status{VideoQueue: 5})

	assert.Len(t, recs, 1)
	assert.Contains(t, recs[0].Message, "Video queue is overloaded")
}

func TestSummarize(t *testing.T) {
	status := models.Status{
		TextQueue:   2,
		ActiveRooms: 3,
		Metrics:     models.Metrics{TotalPairings: 3, SuccessfulPairings: 3, FailedPairings: 1, AverageWaitTimeMs: 1500},
	}

	perf := analysis.Summarize(status)

	assert.InDelta(t, 75.0, perf.InstantPairingRate, 1e-9)
	assert.Equal(t, 1500.0, perf.AverageWaitTimeMs)
	assert.Equal(t, 3, perf.TotalPairings)
	assert.InDelta(t, 75.0, perf.SuccessRate, 1e-9)

	assert.Equal(t, 100.0, analysis.Summarize(models.Status{}).InstantPairingRate)
}

func TestBuildAnalytics(t *testing.T) {
	status := models.Status{ActiveRooms: 2, Metrics: models.Metrics{SuccessfulPairings: 2}}

	a := analysis.BuildAnalytics(status)

	assert.Equal(t, 2, a.ActiveRooms)
	assert.Equal(t, 100.0, a.SuccessRate)
	assert.NotNil(t, a.Recommendations)
}

// TestCheckAlgorithm verifies the health payload carries version, features and advice.
func TestCheckAlgorithm(t *testing.T) {
	status := models.Status{VideoQueue: 4, Metrics: models.Metrics{TotalPairings: 1, SuccessfulPairings: 1}}

	health := analysis.CheckAlgorithm(status)

	assert.Equal(t, "2.0.0", health.Version)
	assert.Len(t, health.Features, 5)
	assert.Equal(t, 1, health.Performance.TotalPairings)
	assert.Equal(t, 0.0, health.Performance.InstantPairingRate)
	assert.Len(t, health.Recommendations, 1)
}

// TestRunSelfTest verifies the self-test condenses queues, pairing and reputation.
func TestRunSelfTest(t *testing.T) {
	// Arrange
	status := models.Status{
		TextQueue:   3,
		VideoQueue:  1,
		ActiveRooms: 5,
		Behavior:    models.BehaviorStats{TrackedUsers: 14, AverageReputation: 0.55, NewUsers: 2, ActiveUsers: 9},
		Metrics:     models.Metrics{TotalPairings: 6, SuccessfulPairings: 6, FailedPairings: 2, AverageWaitTimeMs: 800},
	}

	// Act
	result := analysis.RunSelfTest(status)

	// Assert
	assert.Equal(t, analysis.QueueReport{TextQueue: 3, VideoQueue: 1, TotalUsers: 4}, result.Queues)
	assert.Equal(t, 800.0, result.Pairing.AverageMatchTimeMs)
	assert.InDelta(t, 75.0, result.Pairing.SuccessRate, 1e-9)
	assert.Equal(t, 6, result.Pairing.TotalPairings)
	assert.Equal(t, status.Behavior, result.Behavior)
	assert.Empty(t, result.Recommendations)
}
