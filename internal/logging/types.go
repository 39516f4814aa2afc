package logging

import "time"

// #region tick-entry
// TickEntry is a single row in the tick_log table.
type TickEntry struct {
	RunID        string
	Tick         int64
	Objects      int
	Updates      int
	Soaked       int
	DroppedEdges int
	Duration     time.Duration
	CreatedAt    time.Time
}
// #endregion tick-entry

// #region tick-summary
// TickSummary aggregates the tick_log rows of one run.
type TickSummary struct {
	RunID        string
	Ticks        int
	Updates      int
	Soaked       int
	MeanDuration time.Duration
	MaxDuration  time.Duration
}
// #endregion tick-summary
