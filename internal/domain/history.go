package domain

import "time"

// History event types recorded for a wager's lifecycle.
const (
	HistoryBaselineCaptured = "baseline_captured"
	HistoryResolved         = "resolved"
	HistoryWashed           = "washed"
	HistorySnapshot         = "snapshot"
)

// HistoryEntry is one append-only lifecycle record. Entries are never
// mutated or deleted by this service.
type HistoryEntry struct {
	ID        int64
	WagerID   string
	EventType string
	Detail    map[string]any
	CreatedAt time.Time
}
