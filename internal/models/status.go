package models

// Metrics are the pairing counters kept by the hub since process start.
type Metrics struct {
	TotalPairings      int `json:"total_pairings"`
	SuccessfulPairings int `json:"successful_pairings"`
	FailedPairings     int `json:"failed_pairings"`
	// AverageWaitTimeMs is a decaying average: each pairing halves the weight of history.
	AverageWaitTimeMs float64 `json:"average_wait_time_ms"`
}

// SuccessRate is the percentage of pairing attempts that produced a room.
// With no attempts at all it reports 100.
func (m Metrics) SuccessRate() float64 {
	attempts := m.SuccessfulPairings + m.FailedPairings
	if attempts == 0 {
		return 100
	}
	return float64(m.SuccessfulPairings) / float64(attempts) * 100
}

// BehaviorStats aggregates the reputation registry.
type BehaviorStats struct {
	TrackedUsers      int     `json:"total_tracked_users"`
	AverageReputation float64 `json:"average_behavior_score"`
	NewUsers          int     `json:"new_users"`
	ActiveUsers       int     `json:"active_users"`
}

// WaiterStatus describes one queued participant.
type WaiterStatus struct {
	ID           ParticipantID `json:"id"`
	ChatType     ChatType      `json:"chat_type"`
	Position     int           `json:"position"`
	WaitedMs     int64         `json:"waited_ms"`
	WaitPriority float64       `json:"wait_priority"`
}

// Status is a read-only snapshot of the hub, taken inside the hub goroutine.
type Status struct {
	TextQueue    int                  `json:"text_queue"`
	VideoQueue   int                  `json:"video_queue"`
	ActiveRooms  int                  `json:"active_rooms"`
	Online       int                  `json:"online_users"`
	TotalUsers   int                  `json:"total_users"`
	PrivateRooms []PrivateRoomSummary `json:"private_rooms"`
	Waiters      []WaiterStatus       `json:"waiters"`
	Metrics      Metrics              `json:"metrics"`
	Behavior     BehaviorStats        `json:"user_behavior"`
}
