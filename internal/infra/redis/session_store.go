package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quizbot/internal/domain"
)

// SessionStore persists sessions and poll mappings as JSON values in Redis.
// Key layout:
//
//	quiz:sess:{chat}:{id}  session JSON
//	quiz:latest:{chat}     ID of the chat's most recent session
//	quiz:poll:{pollID}     poll ref JSON (append-only, SETNX)
//	quiz:running           set of "chat/id" members still in the running phase
//
// endedTTL, when non-zero, expires finished sessions so historical quizzes
// age out of Redis on their own.
type SessionStore struct {
	client   *redis.Client
	endedTTL time.Duration
}

func NewSessionStore(client *redis.Client, endedTTL time.Duration) *SessionStore {
	return &SessionStore{client: client, endedTTL: endedTTL}
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	updateLatest, err := s.isNewest(ctx, session)
	if err != nil {
		return err
	}

	member := runningMember(session.ChatID, session.ID)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKey(session.ChatID, session.ID), data, 0)
	if updateLatest {
		pipe.Set(ctx, latestKey(session.ChatID), session.ID, 0)
	}
	if session.Phase == domain.PhaseRunning {
		pipe.SAdd(ctx, runningKey, member)
	} else {
		pipe.SRem(ctx, runningKey, member)
	}
	if session.Phase == domain.PhaseEnded && s.endedTTL > 0 {
		pipe.Expire(ctx, sessionKey(session.ChatID, session.ID), s.endedTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// isNewest reports whether the session should become the chat's latest. A
// late write to an old session (deadline firing, straggling poll answer)
// must not re-point the chat at it.
func (s *SessionStore) isNewest(ctx context.Context, session *domain.Session) (bool, error) {
	currentID, err := s.client.Get(ctx, latestKey(session.ChatID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get latest pointer: %w", err)
	}
	if currentID == session.ID {
		return true, nil
	}
	current, err := s.Get(ctx, session.ChatID, currentID)
	if err == domain.ErrSessionNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !session.CreatedAt.Before(current.CreatedAt), nil
}

func (s *SessionStore) Get(ctx context.Context, chatID int64, sessionID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID, sessionID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Latest(ctx context.Context, chatID int64) (*domain.Session, error) {
	sessionID, err := s.client.Get(ctx, latestKey(chatID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest pointer: %w", err)
	}
	return s.Get(ctx, chatID, sessionID)
}

func (s *SessionStore) SavePollRef(ctx context.Context, ref domain.PollRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal poll ref: %w", err)
	}
	// SETNX keeps the mapping append-only.
	if err := s.client.SetNX(ctx, pollKey(ref.PollID), data, 0).Err(); err != nil {
		return fmt.Errorf("save poll ref: %w", err)
	}
	return nil
}

func (s *SessionStore) LookupPoll(ctx context.Context, pollID string) (domain.PollRef, error) {
	data, err := s.client.Get(ctx, pollKey(pollID)).Bytes()
	if err == redis.Nil {
		return domain.PollRef{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.PollRef{}, fmt.Errorf("lookup poll: %w", err)
	}
	var ref domain.PollRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return domain.PollRef{}, fmt.Errorf("unmarshal poll ref: %w", err)
	}
	return ref, nil
}

func (s *SessionStore) ListRunning(ctx context.Context) ([]*domain.Session, error) {
	members, err := s.client.SMembers(ctx, runningKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list running: %w", err)
	}
	var out []*domain.Session
	for _, member := range members {
		chatID, sessionID, ok := parseRunningMember(member)
		if !ok {
			continue
		}
		session, err := s.Get(ctx, chatID, sessionID)
		if err == domain.ErrSessionNotFound {
			// Stale index entry; drop it.
			_ = s.client.SRem(ctx, runningKey, member).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

const runningKey = "quiz:running"

func sessionKey(chatID int64, sessionID string) string {
	return fmt.Sprintf("quiz:sess:%d:%s", chatID, sessionID)
}

func latestKey(chatID int64) string {
	return fmt.Sprintf("quiz:latest:%d", chatID)
}

func pollKey(pollID string) string {
	return "quiz:poll:" + pollID
}

func runningMember(chatID int64, sessionID string) string {
	return fmt.Sprintf("%d/%s", chatID, sessionID)
}

func parseRunningMember(member string) (int64, string, bool) {
	parts := strings.SplitN(member, "/", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return chatID, parts[1], true
}
