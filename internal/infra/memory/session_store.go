package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"quizbot/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Sessions
// are cloned on the way in and out so callers never share mutable state with
// the store, matching the semantics of the durable backends.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	latest   map[int64]string
	polls    map[string]domain.PollRef
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		latest:   make(map[int64]string),
		polls:    make(map[string]domain.PollRef),
	}
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	clone, err := cloneSession(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key(session.ChatID, session.ID)] = clone
	// A late write to an old session (deadline firing, straggling poll
	// answer) must not re-point the chat at it.
	if s.isNewest(session) {
		s.latest[session.ChatID] = session.ID
	}
	return nil
}

// isNewest reports whether the session should become the chat's latest.
// Caller holds mu.
func (s *SessionStore) isNewest(session *domain.Session) bool {
	currentID, ok := s.latest[session.ChatID]
	if !ok || currentID == session.ID {
		return true
	}
	current, ok := s.sessions[key(session.ChatID, currentID)]
	if !ok {
		return true
	}
	return !session.CreatedAt.Before(current.CreatedAt)
}

func (s *SessionStore) Get(_ context.Context, chatID int64, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[key(chatID, sessionID)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session)
}

func (s *SessionStore) Latest(ctx context.Context, chatID int64) (*domain.Session, error) {
	s.mu.RLock()
	sessionID, ok := s.latest[chatID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Get(ctx, chatID, sessionID)
}

func (s *SessionStore) SavePollRef(_ context.Context, ref domain.PollRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Append-only: the first mapping for a poll ID wins.
	if _, ok := s.polls[ref.PollID]; !ok {
		s.polls[ref.PollID] = ref
	}
	return nil
}

func (s *SessionStore) LookupPoll(_ context.Context, pollID string) (domain.PollRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.polls[pollID]
	if !ok {
		return domain.PollRef{}, domain.ErrPollNotFound
	}
	return ref, nil
}

func (s *SessionStore) ListRunning(_ context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Session
	for _, session := range s.sessions {
		if session.Phase != domain.PhaseRunning {
			continue
		}
		clone, err := cloneSession(session)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	return out, nil
}

func key(chatID int64, sessionID string) string {
	return fmt.Sprintf("%d/%s", chatID, sessionID)
}

func cloneSession(session *domain.Session) (*domain.Session, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("clone session: %w", err)
	}
	var clone domain.Session
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("clone session: %w", err)
	}
	return &clone, nil
}
