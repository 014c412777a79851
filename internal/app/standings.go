package app

import (
	"context"
	"sort"

	"quizbot/internal/domain"
)

// Subscribe returns a channel that receives standings snapshots for a session:
// one immediately, then one per recorded answer and at quiz end. The caller
// must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, chatID int64, sessionID string) (<-chan domain.Standings, func(), error) {
	session, err := s.store.Get(ctx, chatID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Standings, 8)
	key := sessionKey(chatID, sessionID)

	s.subsMu.Lock()
	set, ok := s.subs[key]
	if !ok {
		set = make(map[chan domain.Standings]struct{})
		s.subs[key] = set
	}
	set[ch] = struct{}{}
	s.subsMu.Unlock()

	ch <- s.snapshot(session)

	cancel := func() {
		s.subsMu.Lock()
		if set, ok := s.subs[key]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(s.subs, key)
			}
		}
		s.subsMu.Unlock()
	}
	return ch, cancel, nil
}

// broadcast pushes a fresh snapshot to every subscriber of the session. Slow
// consumers have their stale snapshot dropped rather than blocking the send.
func (s *QuizService) broadcast(session *domain.Session) {
	snapshot := s.snapshot(session)
	key := sessionKey(session.ChatID, session.ID)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs[key] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *QuizService) snapshot(session *domain.Session) domain.Standings {
	entries := make([]domain.StandingsEntry, 0, len(session.Scores))
	for userID, score := range session.Scores {
		entries = append(entries, domain.StandingsEntry{
			UserID:    userID,
			Correct:   score.Correct,
			Wrong:     score.Wrong,
			Attempted: score.Correct + score.Wrong,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Correct != entries[j].Correct {
			return entries[i].Correct > entries[j].Correct
		}
		if entries[i].Wrong != entries[j].Wrong {
			return entries[i].Wrong < entries[j].Wrong
		}
		return entries[i].UserID < entries[j].UserID
	})
	return domain.Standings{
		ChatID:    session.ChatID,
		SessionID: session.ID,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}
