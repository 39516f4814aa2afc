package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	scene       TEXT NOT NULL,
	online      INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_values (
	run_id      TEXT NOT NULL,
	tick        INTEGER NOT NULL,
	object      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	value_json  TEXT NOT NULL,
	PRIMARY KEY (run_id, tick, object, kind),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS baked_states (
	scene       TEXT NOT NULL,
	object      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	value_json  TEXT NOT NULL,
	PRIMARY KEY (scene, object, kind)
);

CREATE TABLE IF NOT EXISTS tick_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	tick          INTEGER NOT NULL,
	objects       INTEGER NOT NULL,
	updates       INTEGER NOT NULL,
	soaked        INTEGER NOT NULL,
	dropped_edges INTEGER NOT NULL,
	duration_us   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store persists run recordings and baked scene values in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region runs
// CreateRun registers a new recording session.
func (s *Store) CreateRun(scene string, online bool) (Run, error) {
	run := Run{
		RunID:     uuid.New().String(),
		Scene:     scene,
		Online:    online,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, scene, online, created_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Scene, boolInt(online), run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, scene, online, created_at FROM runs ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var online int
		var createdStr string
		if err := rows.Scan(&r.RunID, &r.Scene, &online, &createdStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Online = online != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
// #endregion runs

// #region record
// RecordSnapshot stores the values of one tick atomically. Re-recording a tick replaces it.
func (s *Store) RecordSnapshot(runID string, tick int64, values []StateValue) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO state_values (run_id, tick, object, kind, value_json) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		data, err := objstate.EncodeValue(v.Value)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", v.Object, v.Kind, err)
		}
		if _, err := stmt.Exec(runID, tick, v.Object, string(v.Kind), string(data)); err != nil {
			return fmt.Errorf("insert value %s/%s: %w", v.Object, v.Kind, err)
		}
	}
	return tx.Commit()
}

// LoadTick returns the values recorded for one tick in insertion order.
func (s *Store) LoadTick(runID string, tick int64) ([]StoredValue, error) {
	rows, err := s.db.Query(
		`SELECT tick, object, kind, value_json FROM state_values
		 WHERE run_id = ? AND tick = ? ORDER BY rowid`, runID, tick,
	)
	if err != nil {
		return nil, fmt.Errorf("load tick %d: %w", tick, err)
	}
	defer rows.Close()

	var out []StoredValue
	for rows.Next() {
		var v StoredValue
		var kind string
		if err := rows.Scan(&v.Tick, &v.Object, &kind, &v.ValueJSON); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		v.Kind = objstate.Kind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}

// LastTick returns the highest recorded tick of a run, or -1 when nothing was recorded.
func (s *Store) LastTick(runID string) (int64, error) {
	var tick int64
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(tick), -1) FROM state_values WHERE run_id = ?`, runID,
	).Scan(&tick)
	if err != nil {
		return 0, fmt.Errorf("last tick: %w", err)
	}
	return tick, nil
}
// #endregion record

// #region baked
// BakeScene replaces the baked values of a scene.
func (s *Store) BakeScene(scene string, values []StateValue) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM baked_states WHERE scene = ?`, scene); err != nil {
		return fmt.Errorf("clear baked: %w", err)
	}
	for _, v := range values {
		data, err := objstate.EncodeValue(v.Value)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", v.Object, v.Kind, err)
		}
		_, err = tx.Exec(
			`INSERT INTO baked_states (scene, object, kind, value_json) VALUES (?, ?, ?, ?)`,
			scene, v.Object, string(v.Kind), string(data),
		)
		if err != nil {
			return fmt.Errorf("insert baked %s/%s: %w", v.Object, v.Kind, err)
		}
	}
	return tx.Commit()
}

// LoadBaked returns the baked values of a scene keyed by object, decoded with reg.
// The result plugs into objstate.ObjectSpec.Baked.
func (s *Store) LoadBaked(scene string, reg *objstate.Registry) (map[string]map[objstate.Kind]any, error) {
	rows, err := s.db.Query(
		`SELECT object, kind, value_json FROM baked_states WHERE scene = ?`, scene,
	)
	if err != nil {
		return nil, fmt.Errorf("load baked: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[objstate.Kind]any)
	for rows.Next() {
		var object, kind, data string
		if err := rows.Scan(&object, &kind, &data); err != nil {
			return nil, fmt.Errorf("scan baked: %w", err)
		}
		v, err := reg.DecodeValue(objstate.Kind(kind), []byte(data))
		if err != nil {
			return nil, fmt.Errorf("baked %s/%s: %w", object, kind, err)
		}
		if v == nil {
			continue
		}
		if out[object] == nil {
			out[object] = make(map[objstate.Kind]any)
		}
		out[object][objstate.Kind(kind)] = v
	}
	return out, rows.Err()
}
// #endregion baked

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion helpers
