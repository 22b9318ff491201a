package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testInteraction(userID, sessionID string, at time.Time) Interaction {
	return Interaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionID:    sessionID,
		Mode:         "chat",
		Query:        "what is photosynthesis",
		Response:     "Photosynthesis converts light into chemical energy.",
		Source:       "rag",
		ResponseTime: 0.4,
		CreatedAt:    at,
	}
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("got versions %v, want [1 ...]", versions)
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	in := testInteraction("alice", "s1", time.Now().UTC().Truncate(time.Second))
	if err := s.SaveInteraction(in); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.GetInteraction(in.ID)
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got != in {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestGetInteractionNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetInteraction("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRecentInteractionsOrderAndScope(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	older := testInteraction("alice", "s1", base.Add(-2*time.Minute))
	newer := testInteraction("alice", "s1", base)
	other := testInteraction("bob", "s2", base)
	for _, in := range []Interaction{older, newer, other} {
		if err := s.SaveInteraction(in); err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	got, err := s.RecentInteractions("alice", 10)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d interactions, want 2", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestSessionInteractionsChronological(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)
	first := testInteraction("alice", "s1", base.Add(-time.Minute))
	second := testInteraction("alice", "s1", base)
	for _, in := range []Interaction{second, first} {
		if err := s.SaveInteraction(in); err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	got, err := s.SessionInteractions("s1")
	if err != nil {
		t.Fatalf("SessionInteractions: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID {
		t.Errorf("not chronological: %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	sess := Session{ID: "s1", UserID: "alice", Title: "Biology revision", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != sess {
		t.Errorf("got %+v, want %+v", got, sess)
	}

	if err := s.TouchSession("s1", now.Add(time.Hour)); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	got, err = s.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("UpdatedAt not bumped: %v", got.UpdatedAt)
	}

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v after delete, want ErrNotFound", err)
	}
}

func TestListSessionsRecentFirst(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	old := Session{ID: "s1", UserID: "alice", Title: "old", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)}
	recent := Session{ID: "s2", UserID: "alice", Title: "recent", CreatedAt: now, UpdatedAt: now}
	other := Session{ID: "s3", UserID: "bob", Title: "", CreatedAt: now, UpdatedAt: now}
	for _, sess := range []Session{old, recent, other} {
		if err := s.CreateSession(sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	got, err := s.ListSessions("alice", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s2" || got[1].ID != "s1" {
		t.Errorf("wrong listing: %+v", got)
	}
}

func TestDeleteSessionRemovesInteractions(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateSession(Session{ID: "s1", UserID: "alice", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	in := testInteraction("alice", "s1", now)
	if err := s.SaveInteraction(in); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	got, err := s.SessionInteractions("s1")
	if err != nil {
		t.Fatalf("SessionInteractions: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("interactions survived session delete: %+v", got)
	}
}

func TestUserAnalytics(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	modes := []struct{ mode, source string }{
		{"chat", "rag"},
		{"chat", "gemini"},
		{"quiz", "rag_quiz"},
	}
	for _, m := range modes {
		in := testInteraction("alice", "s1", now)
		in.Mode = m.mode
		in.Source = m.source
		if err := s.SaveInteraction(in); err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	a, err := s.UserAnalytics("alice")
	if err != nil {
		t.Fatalf("UserAnalytics: %v", err)
	}
	if a.TotalInteractions != 3 {
		t.Errorf("TotalInteractions = %d, want 3", a.TotalInteractions)
	}
	if a.ModeCounts["chat"] != 2 || a.ModeCounts["quiz"] != 1 {
		t.Errorf("ModeCounts = %v", a.ModeCounts)
	}
	if a.SourceCounts["rag"] != 1 || a.SourceCounts["gemini"] != 1 {
		t.Errorf("SourceCounts = %v", a.SourceCounts)
	}
	if a.AvgResponseTime <= 0 {
		t.Errorf("AvgResponseTime = %v", a.AvgResponseTime)
	}

	empty, err := s.UserAnalytics("nobody")
	if err != nil {
		t.Fatalf("UserAnalytics: %v", err)
	}
	if empty.TotalInteractions != 0 || empty.AvgResponseTime != 0 {
		t.Errorf("expected zero analytics, got %+v", empty)
	}
}
