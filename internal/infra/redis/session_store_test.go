package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quizbot/internal/domain"
)

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	session := sampleSession(42, "s-1")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:sess:42:s-1") {
		t.Fatalf("expected session key in redis")
	}

	got, err := store.Get(ctx, 42, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != domain.PhaseAwaitingDuration || len(got.Questions) != 1 {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := store.Get(ctx, 42, "missing"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	latest, err := store.Latest(ctx, 42)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "s-1" {
		t.Fatalf("expected s-1 as latest, got %s", latest.ID)
	}
}

func TestRunningIndexFollowsPhase(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	session := sampleSession(42, "s-1")
	session.Phase = domain.PhaseRunning
	session.EndsAt = time.Now().Add(time.Minute)
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save running: %v", err)
	}

	pending, err := store.ListRunning(ctx)
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "s-1" {
		t.Fatalf("expected running session, got %+v", pending)
	}

	session.Phase = domain.PhaseEnded
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save ended: %v", err)
	}
	pending, err = store.ListRunning(ctx)
	if err != nil {
		t.Fatalf("list running after end: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("ended session must leave the running index, got %+v", pending)
	}
}

func TestLatestIgnoresLateWritesToOlderSessions(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	older := sampleSession(42, "s-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	if err := store.Save(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}

	newer := sampleSession(42, "s-2")
	if err := store.Save(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	// The old quiz's deadline fires after a new PDF was uploaded; its save
	// must not steal the latest pointer back.
	older.Phase = domain.PhaseEnded
	if err := store.Save(ctx, older); err != nil {
		t.Fatalf("late save: %v", err)
	}

	latest, err := store.Latest(ctx, 42)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "s-2" {
		t.Fatalf("late write re-pointed latest at %s, want s-2", latest.ID)
	}
}

func TestPollRefAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	ref := domain.PollRef{PollID: "p-1", ChatID: 42, SessionID: "s-1", Ordinal: 1}
	if err := store.SavePollRef(ctx, ref); err != nil {
		t.Fatalf("save ref: %v", err)
	}
	dup := ref
	dup.Ordinal = 99
	if err := store.SavePollRef(ctx, dup); err != nil {
		t.Fatalf("save dup ref: %v", err)
	}

	got, err := store.LookupPoll(ctx, "p-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Ordinal != 1 {
		t.Fatalf("poll ref was overwritten: %+v", got)
	}

	if _, err := store.LookupPoll(ctx, "unknown"); err != domain.ErrPollNotFound {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewSessionStore(client, time.Hour), mr
}

func sampleSession(chatID int64, id string) *domain.Session {
	return &domain.Session{
		ChatID: chatID,
		ID:     id,
		Phase:  domain.PhaseAwaitingDuration,
		Questions: []domain.Question{
			{Ordinal: 1, Text: "What is 2 + 2?", Options: []string{"3", "4"}},
		},
		Scores:    make(map[int64]*domain.UserScore),
		CreatedAt: time.Now(),
	}
}
