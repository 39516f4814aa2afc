package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-tick
// LogTick writes a tick entry to the tick_log table.
func LogTick(db *sql.DB, entry TickEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO tick_log (run_id, tick, objects, updates, soaked, dropped_edges, duration_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Tick,
		entry.Objects,
		entry.Updates,
		entry.Soaked,
		entry.DroppedEdges,
		entry.Duration.Microseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log tick %d: %w", entry.Tick, err)
	}
	return nil
}
// #endregion log-tick

// #region recent-ticks
// RecentTicks returns the last limit entries of a run, oldest first.
func RecentTicks(db *sql.DB, runID string, limit int) ([]TickEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, tick, objects, updates, soaked, dropped_edges, duration_us, created_at
		 FROM tick_log WHERE run_id = ? ORDER BY tick DESC LIMIT ?`, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent ticks: %w", err)
	}
	defer rows.Close()

	var entries []TickEntry
	for rows.Next() {
		var e TickEntry
		var durUS int64
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Tick, &e.Objects, &e.Updates, &e.Soaked, &e.DroppedEdges, &durUS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		e.Duration = time.Duration(durUS) * time.Microsecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
// #endregion recent-ticks

// #region summarize
// Summarize aggregates every tick_log row of a run.
func Summarize(db *sql.DB, runID string) (TickSummary, error) {
	var s TickSummary
	var meanUS float64
	var maxUS int64
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(updates), 0), COALESCE(SUM(soaked), 0),
		        COALESCE(AVG(duration_us), 0), COALESCE(MAX(duration_us), 0)
		 FROM tick_log WHERE run_id = ?`, runID,
	).Scan(&s.Ticks, &s.Updates, &s.Soaked, &meanUS, &maxUS)
	if err != nil {
		return TickSummary{}, fmt.Errorf("summarize %s: %w", runID, err)
	}
	s.RunID = runID
	s.MeanDuration = time.Duration(meanUS * float64(time.Microsecond))
	s.MaxDuration = time.Duration(maxUS) * time.Microsecond
	return s, nil
}
// #endregion summarize
