package domain

import "time"

// Phase tracks where a quiz session is in its lifecycle.
type Phase string

const (
	PhaseCreated          Phase = "created"
	PhaseAwaitingDuration Phase = "awaiting_duration"
	PhaseRunning          Phase = "running"
	PhaseEnded            Phase = "ended"
)

// Question is one parsed multiple-choice question. CorrectIndex stays nil until
// the answer oracle resolves it; it may remain nil forever, in which case the
// question can never be scored correct for any user.
type Question struct {
	Ordinal      int      `json:"ordinal"` // 1-based position in the quiz
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// UserScore accumulates one participant's answers. Answers maps question
// ordinal to the chosen option index; a nil value records an abstain, which is
// counted in neither Correct nor Wrong. Invariant: Correct+Wrong equals the
// number of non-nil entries in Answers.
type UserScore struct {
	Correct int          `json:"correct"`
	Wrong   int          `json:"wrong"`
	Answers map[int]*int `json:"answers"`
}

// Session is one quiz run inside a chat. The ID is unique within the chat and
// never reused. Questions are fixed once the session leaves the created phase.
type Session struct {
	ChatID    int64                `json:"chatId"`
	ID        string               `json:"id"`
	Phase     Phase                `json:"phase"`
	Questions []Question           `json:"questions"`
	Scores    map[int64]*UserScore `json:"scores"`
	CreatedAt time.Time            `json:"createdAt"`
	StartedAt time.Time            `json:"startedAt,omitempty"`
	EndsAt    time.Time            `json:"endsAt,omitempty"`
}

// Question returns the question with the given 1-based ordinal, or nil.
func (s *Session) Question(ordinal int) *Question {
	if ordinal < 1 || ordinal > len(s.Questions) {
		return nil
	}
	return &s.Questions[ordinal-1]
}

// PollRef resolves a gateway-assigned poll ID back to the question it was sent
// for. Entries are append-only and never deleted.
type PollRef struct {
	PollID    string `json:"pollId"`
	ChatID    int64  `json:"chatId"`
	SessionID string `json:"sessionId"`
	Ordinal   int    `json:"ordinal"`
}

// Result is one user's tally for a session.
type Result struct {
	Correct   int `json:"correct"`
	Wrong     int `json:"wrong"`
	Attempted int `json:"attempted"`
	Total     int `json:"total"`
}

// Explanation is the oracle's on-demand answer for a single question.
type Explanation struct {
	Ordinal     int      `json:"ordinal"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	Explanation string   `json:"explanation"`
}

// StandingsEntry is a snapshot-friendly view of one participant's tally.
type StandingsEntry struct {
	UserID    int64 `json:"userId"`
	Correct   int   `json:"correct"`
	Wrong     int   `json:"wrong"`
	Attempted int   `json:"attempted"`
}

// Standings captures the ordered scoreboard for a quiz session.
type Standings struct {
	ChatID    int64            `json:"chatId"`
	SessionID string           `json:"sessionId"`
	Entries   []StandingsEntry `json:"entries"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
