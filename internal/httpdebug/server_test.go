package httpdebug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/swimd/swimd/internal/addr"
	"github.com/swimd/swimd/internal/membership"
	"github.com/swimd/swimd/internal/swimnode"
)

func TestHealthz(t *testing.T) {
	s := NewServer(NewCache(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMembersReflectsCache(t *testing.T) {
	cache := NewCache()
	peer, err := addr.Parse("127.0.0.1:9001")
	if err != nil {
		t.Fatal(err)
	}

	cache.Store(swimnode.Snapshot{
		At:      time.Unix(1700000000, 0).UTC(),
		Active:  1,
		Suspect: 0,
		Dead:    0,
		MeanRTT: 12 * time.Millisecond,
		Members: []membership.Member{
			{Endpoint: peer, State: membership.Active, ChangedAt: time.Unix(1700000000, 0).UTC()},
		},
	})

	s := NewServer(cache, nil)
	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp membersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Active != 1 {
		t.Errorf("Active = %d, want 1", resp.Active)
	}
	if len(resp.Members) != 1 || resp.Members[0].Endpoint != peer.String() {
		t.Fatalf("Members = %+v", resp.Members)
	}
	if resp.Members[0].State != "active" {
		t.Errorf("State = %q, want %q", resp.Members[0].State, "active")
	}
}

func TestMembersEmptyCache(t *testing.T) {
	s := NewServer(NewCache(), nil)
	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp membersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Members) != 0 {
		t.Errorf("Members = %+v, want empty", resp.Members)
	}
}
