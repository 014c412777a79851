package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizbot/internal/domain"
)

// SessionStore keeps sessions as JSONB rows in Postgres, with a separate
// append-only poll_refs table for answer routing.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (chat_id, session_id, phase, data, created_at, ends_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (chat_id, session_id)
		DO UPDATE SET phase = EXCLUDED.phase, data = EXCLUDED.data, ends_at = EXCLUDED.ends_at`,
		session.ChatID, session.ID, string(session.Phase), string(data), session.CreatedAt, session.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, chatID int64, sessionID string) (*domain.Session, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM quiz_sessions WHERE chat_id = $1 AND session_id = $2`,
		chatID, sessionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return unmarshalSession(raw)
}

func (s *SessionStore) Latest(ctx context.Context, chatID int64) (*domain.Session, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM quiz_sessions WHERE chat_id = $1 ORDER BY created_at DESC LIMIT 1`,
		chatID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest session: %w", err)
	}
	return unmarshalSession(raw)
}

func (s *SessionStore) SavePollRef(ctx context.Context, ref domain.PollRef) error {
	// ON CONFLICT DO NOTHING keeps the mapping append-only.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_poll_refs (poll_id, chat_id, session_id, ordinal)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id) DO NOTHING`,
		ref.PollID, ref.ChatID, ref.SessionID, ref.Ordinal,
	)
	if err != nil {
		return fmt.Errorf("save poll ref: %w", err)
	}
	return nil
}

func (s *SessionStore) LookupPoll(ctx context.Context, pollID string) (domain.PollRef, error) {
	ref := domain.PollRef{PollID: pollID}
	err := s.pool.QueryRow(ctx,
		`SELECT chat_id, session_id, ordinal FROM quiz_poll_refs WHERE poll_id = $1`,
		pollID,
	).Scan(&ref.ChatID, &ref.SessionID, &ref.Ordinal)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PollRef{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.PollRef{}, fmt.Errorf("lookup poll: %w", err)
	}
	return ref, nil
}

func (s *SessionStore) ListRunning(ctx context.Context) ([]*domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quiz_sessions WHERE phase = $1`,
		string(domain.PhaseRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("list running: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session, err := unmarshalSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func unmarshalSession(raw []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
