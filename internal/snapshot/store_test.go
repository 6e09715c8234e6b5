package snapshot

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	s, err := Open(path, "test-run")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	s1, err := Open(path, "run-1")
	if err != nil {
		t.Fatalf("Open (first): %v", err)
	}
	s1.Close()

	s2, err := Open(path, "run-2")
	if err != nil {
		t.Fatalf("Open (second, same file): %v", err)
	}
	defer s2.Close()
}

func TestRecordMemberEvent(t *testing.T) {
	s := newTestStore(t)
	s.RecordMemberEvent("127.0.0.1:9001", "active", "suspect")
	s.RecordMemberEvent("127.0.0.1:9001", "suspect", "dead")

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM member_events WHERE peer = ?`, "127.0.0.1:9001").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 2 {
		t.Errorf("member_events count = %d, want 2", count)
	}

	var fromState, toState string
	row := s.db.QueryRow(`SELECT from_state, to_state FROM member_events WHERE peer = ? ORDER BY id ASC LIMIT 1`, "127.0.0.1:9001")
	if err := row.Scan(&fromState, &toState); err != nil {
		t.Fatalf("query: %v", err)
	}
	if fromState != "active" || toState != "suspect" {
		t.Errorf("first event = (%s -> %s), want (active -> suspect)", fromState, toState)
	}
}

func TestRecordTick(t *testing.T) {
	s := newTestStore(t)
	s.RecordTick(3, 1, 0, 42*time.Millisecond)

	var active, suspect, dead, meanUS int
	row := s.db.QueryRow(`SELECT active, suspect, dead, mean_rtt_us FROM tick_stats ORDER BY id DESC LIMIT 1`)
	if err := row.Scan(&active, &suspect, &dead, &meanUS); err != nil {
		t.Fatalf("query: %v", err)
	}
	if active != 3 || suspect != 1 || dead != 0 {
		t.Errorf("tick_stats = (%d,%d,%d), want (3,1,0)", active, suspect, dead)
	}
	if meanUS != 42000 {
		t.Errorf("mean_rtt_us = %d, want 42000", meanUS)
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store
	s.RecordMemberEvent("x", "suspect", "dead")
	s.RecordTick(0, 0, 0, 0)
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil store = %v, want nil", err)
	}
}
