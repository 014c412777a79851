package app

import (
	"context"
	"fmt"

	"quizbot/internal/domain"
)

// SessionStore abstracts the durable session mapping (in-memory, Redis, Postgres).
// Implementations return domain.ErrSessionNotFound / domain.ErrPollNotFound for
// missing entries.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, chatID int64, sessionID string) (*domain.Session, error)
	// Latest returns the most recently created session for a chat; commands
	// like result and solve address this one.
	Latest(ctx context.Context, chatID int64) (*domain.Session, error)
	SavePollRef(ctx context.Context, ref domain.PollRef) error
	LookupPoll(ctx context.Context, pollID string) (domain.PollRef, error)
	// ListRunning returns every session still in the running phase, so
	// pending end-of-quiz timers can be re-armed after a restart.
	ListRunning(ctx context.Context) ([]*domain.Session, error)
}

// Gateway delivers polls and messages through the chat platform. All calls are
// best-effort from the service's point of view.
type Gateway interface {
	SendPoll(ctx context.Context, chatID int64, question string, options []string) (pollID string, err error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDirect(ctx context.Context, userID int64, text string) error
}

// Extractor converts a PDF document into plain text. Malformed input yields an
// empty string, which downstream treats as zero questions.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) string
}

// Oracle resolves the best-guess correct option for a question. It never
// fails: an unresolvable question comes back with index -1 and a text
// describing why.
type Oracle interface {
	Resolve(ctx context.Context, question string, options []string) (index int, explanation string)
}

func sessionKey(chatID int64, sessionID string) string {
	return fmt.Sprintf("%d/%s", chatID, sessionID)
}
