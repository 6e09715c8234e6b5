// Package snapshot is a write-only diagnostic sink backed by SQLite: it
// records member state transitions and per-tick summaries for later
// offline inspection. Nothing in the protocol ever reads this back —
// liveness decisions live entirely in internal/membership and
// internal/probe.
package snapshot

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// migrations mirrors the teacher's phase-migration style: a flat list of
// idempotent statements, applied once at Open in order.
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS member_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			peer       TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			happened_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_member_events_peer ON member_events(peer)`,

		`CREATE TABLE IF NOT EXISTS tick_stats (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 0,
			suspect    INTEGER NOT NULL DEFAULT 0,
			dead       INTEGER NOT NULL DEFAULT 0,
			mean_rtt_us INTEGER NOT NULL DEFAULT 0,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// Store is a handle onto the snapshot database. A nil *Store is safe to
// call into (every method is a no-op), so wiring it is optional.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates (or reuses) the sqlite file at path and applies migrations.
// runID tags every row written by this process run, letting one database
// file accumulate history across restarts without rows from different
// runs being confused for one continuous timeline.
func Open(path, runID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("snapshot: migrate: %w", err)
		}
	}
	return &Store{db: db, runID: runID}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RecordMemberEvent appends one state-transition row.
func (s *Store) RecordMemberEvent(peer, fromState, toState string) {
	if s == nil {
		return
	}
	_, _ = s.db.Exec(
		`INSERT INTO member_events (run_id, peer, from_state, to_state) VALUES (?, ?, ?, ?)`,
		s.runID, peer, fromState, toState,
	)
}

// RecordTick appends one per-tick summary row.
func (s *Store) RecordTick(active, suspect, dead int, meanRTT time.Duration) {
	if s == nil {
		return
	}
	_, _ = s.db.Exec(
		`INSERT INTO tick_stats (run_id, active, suspect, dead, mean_rtt_us) VALUES (?, ?, ?, ?, ?)`,
		s.runID, active, suspect, dead, meanRTT.Microseconds(),
	)
}
