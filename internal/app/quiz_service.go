package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizbot/internal/domain"
	"quizbot/internal/mcq"
)

const (
	minDurationMinutes = 1
	maxDurationMinutes = 1440
)

// QuizService drives the session state machine: ingestion, duration selection,
// poll distribution, answer collection and timed scoring. All mutations of one
// session are serialized behind a per-session mutex; distinct sessions proceed
// concurrently.
type QuizService struct {
	store     SessionStore
	gateway   Gateway
	extractor Extractor
	oracle    Oracle
	sched     *Scheduler
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	subsMu sync.Mutex
	subs   map[string]map[chan domain.Standings]struct{}
}

func NewQuizService(store SessionStore, gateway Gateway, extractor Extractor, oracle Oracle, sched *Scheduler, log *zap.Logger) *QuizService {
	return NewQuizServiceWithClock(store, gateway, extractor, oracle, sched, log, time.Now)
}

// NewQuizServiceWithClock allows deterministic timestamps in tests.
func NewQuizServiceWithClock(store SessionStore, gateway Gateway, extractor Extractor, oracle Oracle, sched *Scheduler, log *zap.Logger, now func() time.Time) *QuizService {
	return &QuizService{
		store:     store,
		gateway:   gateway,
		extractor: extractor,
		oracle:    oracle,
		sched:     sched,
		log:       log,
		now:       now,
		locks:     make(map[string]*sync.Mutex),
		subs:      make(map[string]map[chan domain.Standings]struct{}),
	}
}

// CreateSession ingests an uploaded document: extract text, parse questions,
// pre-resolve correct answers best-effort and persist a new session awaiting
// its duration. A document that yields zero questions creates nothing.
func (s *QuizService) CreateSession(ctx context.Context, chatID int64, fileName string, pdf []byte) (*domain.Session, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return nil, domain.ErrNotPDF
	}

	text := s.extractor.ExtractText(ctx, pdf)
	questions := mcq.Parse(text)
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}

	for i := range questions {
		// Oracle failures must not abort ingestion: the question simply
		// keeps a nil correct index and can only score wrong or unanswered.
		index, explanation := s.oracle.Resolve(ctx, questions[i].Text, questions[i].Options)
		if index >= 0 && index < len(questions[i].Options) {
			idx := index
			questions[i].CorrectIndex = &idx
		}
		questions[i].Explanation = explanation
	}

	now := s.now()
	session := &domain.Session{
		ChatID:    chatID,
		ID:        newSessionID(now),
		Phase:     domain.PhaseAwaitingDuration,
		Questions: questions,
		Scores:    make(map[int64]*domain.UserScore),
		CreatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.log.Info("session created",
		zap.Int64("chat", chatID),
		zap.String("session", session.ID),
		zap.Int("questions", len(questions)),
	)
	return session, nil
}

// StartQuiz moves a session into the running phase: fixes the start and end
// timestamps, resets scores, broadcasts one poll per question and arms the
// end-of-quiz timer. A poll that fails to send degrades to a plain message for
// that question only; distribution always attempts every question.
func (s *QuizService) StartQuiz(ctx context.Context, chatID int64, sessionID string, minutes int) error {
	if minutes < minDurationMinutes || minutes > maxDurationMinutes {
		return domain.ErrBadDuration
	}

	unlock := s.lockSession(chatID, sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, chatID, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != domain.PhaseAwaitingDuration && session.Phase != domain.PhaseCreated {
		return domain.ErrWrongPhase
	}

	now := s.now()
	session.Phase = domain.PhaseRunning
	session.StartedAt = now
	session.EndsAt = now.Add(time.Duration(minutes) * time.Minute)
	session.Scores = make(map[int64]*domain.UserScore)

	for _, q := range session.Questions {
		pollID, err := s.gateway.SendPoll(ctx, chatID, q.Text, q.Options)
		if err != nil {
			s.log.Warn("poll send failed, falling back to plain message",
				zap.Int64("chat", chatID),
				zap.Int("ordinal", q.Ordinal),
				zap.Error(err),
			)
			_ = s.gateway.SendMessage(ctx, chatID, formatQuestionFallback(q))
			continue
		}
		ref := domain.PollRef{PollID: pollID, ChatID: chatID, SessionID: session.ID, Ordinal: q.Ordinal}
		if err := s.store.SavePollRef(ctx, ref); err != nil {
			s.log.Warn("save poll ref", zap.String("poll", pollID), zap.Error(err))
		}
	}

	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.scheduleEnd(session)
	_ = s.gateway.SendMessage(ctx, chatID, fmt.Sprintf(
		"Quiz started! It ends at %s. Use /result to check your score anytime; results are posted automatically when time is up.",
		session.EndsAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	))
	s.log.Info("quiz started",
		zap.Int64("chat", chatID),
		zap.String("session", session.ID),
		zap.Int("minutes", minutes),
	)
	return nil
}

// RecordAnswer applies one poll-answer event. Resubmissions overwrite the
// previous choice and the counters are re-derived from the full answer map,
// so duplicates never double-increment. An empty option list records an
// abstain. Answers arriving after the quiz ended are still recorded; they are
// simply absent from the summary that was already delivered.
func (s *QuizService) RecordAnswer(ctx context.Context, pollID string, userID int64, optionIDs []int) error {
	ref, err := s.store.LookupPoll(ctx, pollID)
	if err != nil {
		return err
	}

	unlock := s.lockSession(ref.ChatID, ref.SessionID)
	defer unlock()

	session, err := s.store.Get(ctx, ref.ChatID, ref.SessionID)
	if err != nil {
		return err
	}

	score, ok := session.Scores[userID]
	if !ok {
		score = &domain.UserScore{Answers: make(map[int]*int)}
		session.Scores[userID] = score
	}
	if score.Answers == nil {
		score.Answers = make(map[int]*int)
	}

	var chosen *int
	if len(optionIDs) > 0 {
		v := optionIDs[0]
		chosen = &v
	}
	score.Answers[ref.Ordinal] = chosen
	recount(session, score)

	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.broadcast(session)
	return nil
}

// EndQuiz performs the running-to-ended transition. It is idempotent: a second
// trigger (timer racing a re-armed timer, for instance) sees the ended phase
// and does nothing. Per-user result delivery failures are swallowed so one
// unreachable user never blocks the rest or the group summary.
func (s *QuizService) EndQuiz(ctx context.Context, chatID int64, sessionID string) error {
	unlock := s.lockSession(chatID, sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, chatID, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != domain.PhaseRunning {
		return nil
	}

	session.Phase = domain.PhaseEnded
	if err := s.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	summary := Summarize(session)
	userIDs := make([]int64, 0, len(summary))
	for userID := range summary {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	lines := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		r := summary[userID]
		dm := fmt.Sprintf("Quiz finished! Your results:\n✅ Correct: %d\n❌ Wrong: %d\n📝 Attempted: %d/%d",
			r.Correct, r.Wrong, r.Attempted, r.Total)
		if err := s.gateway.SendDirect(ctx, userID, dm); err != nil {
			// The user may never have started a private chat with the bot.
			s.log.Debug("result DM skipped", zap.Int64("user", userID), zap.Error(err))
		}
		lines = append(lines, fmt.Sprintf("User %d: ✅%d ❌%d (attempted %d)", userID, r.Correct, r.Wrong, r.Attempted))
	}

	var text string
	if len(lines) == 0 {
		text = "Quiz ended! No participants answered."
	} else {
		text = fmt.Sprintf("Quiz ended! Time: %s\n\nResults summary:\n%s",
			session.EndsAt.UTC().Format("2006-01-02 15:04:05 UTC"), strings.Join(lines, "\n"))
	}
	if err := s.gateway.SendMessage(ctx, chatID, text); err != nil {
		s.log.Warn("group summary delivery failed", zap.Int64("chat", chatID), zap.Error(err))
	}

	s.broadcast(session)
	s.log.Info("quiz ended",
		zap.Int64("chat", chatID),
		zap.String("session", sessionID),
		zap.Int("participants", len(userIDs)),
	)
	return nil
}

// Result reports the requesting user's current tally for the chat's latest
// session without mutating state.
func (s *QuizService) Result(ctx context.Context, chatID, userID int64) (domain.Result, error) {
	session, err := s.store.Latest(ctx, chatID)
	if err != nil {
		return domain.Result{}, err
	}
	score, ok := session.Scores[userID]
	if !ok || len(score.Answers) == 0 {
		return domain.Result{}, domain.ErrNoAnswers
	}
	return domain.Result{
		Correct:   score.Correct,
		Wrong:     score.Wrong,
		Attempted: score.Correct + score.Wrong,
		Total:     len(session.Questions),
	}, nil
}

// Explain asks the oracle for a fresh answer to one question of the chat's
// latest session and returns question, options and explanation verbatim.
func (s *QuizService) Explain(ctx context.Context, chatID int64, ordinal int) (domain.Explanation, error) {
	session, err := s.store.Latest(ctx, chatID)
	if err != nil {
		return domain.Explanation{}, err
	}
	question := session.Question(ordinal)
	if question == nil {
		return domain.Explanation{}, domain.ErrQuestionNotFound
	}
	_, explanation := s.oracle.Resolve(ctx, question.Text, question.Options)
	return domain.Explanation{
		Ordinal:     ordinal,
		Text:        question.Text,
		Options:     question.Options,
		Explanation: explanation,
	}, nil
}

// RearmPending re-arms end-of-quiz timers for every session still running in
// the store, deriving the remaining delay from the persisted deadline. A
// deadline already in the past fires immediately.
func (s *QuizService) RearmPending(ctx context.Context) error {
	sessions, err := s.store.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}
	for _, session := range sessions {
		s.scheduleEnd(session)
		s.log.Info("re-armed quiz deadline",
			zap.Int64("chat", session.ChatID),
			zap.String("session", session.ID),
			zap.Time("endsAt", session.EndsAt),
		)
	}
	return nil
}

// Summarize aggregates per-user tallies for a session. Pure read-only.
func Summarize(session *domain.Session) map[int64]domain.Result {
	out := make(map[int64]domain.Result, len(session.Scores))
	for userID, score := range session.Scores {
		out[userID] = domain.Result{
			Correct:   score.Correct,
			Wrong:     score.Wrong,
			Attempted: score.Correct + score.Wrong,
			Total:     len(session.Questions),
		}
	}
	return out
}

func (s *QuizService) scheduleEnd(session *domain.Session) {
	chatID, sessionID := session.ChatID, session.ID
	s.sched.Schedule(sessionKey(chatID, sessionID), session.EndsAt, func() {
		if err := s.EndQuiz(context.Background(), chatID, sessionID); err != nil {
			s.log.Warn("quiz end transition failed",
				zap.Int64("chat", chatID),
				zap.String("session", sessionID),
				zap.Error(err),
			)
		}
	})
}

// lockSession serializes mutations of a single session.
func (s *QuizService) lockSession(chatID int64, sessionID string) func() {
	key := sessionKey(chatID, sessionID)
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// recount re-derives the correct/wrong counters from the full answer map.
// Abstains (nil choices) land in neither counter; a question whose correct
// index was never resolved can only count wrong.
func recount(session *domain.Session, score *domain.UserScore) {
	correct, wrong := 0, 0
	for ordinal, chosen := range score.Answers {
		if chosen == nil {
			continue
		}
		question := session.Question(ordinal)
		if question != nil && question.CorrectIndex != nil && *question.CorrectIndex == *chosen {
			correct++
		} else {
			wrong++
		}
	}
	score.Correct, score.Wrong = correct, wrong
}

func formatQuestionFallback(q domain.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Q%d: %s\nOptions:\n", q.Ordinal, q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// newSessionID derives a chat-unique session ID: ordering-friendly timestamp
// plus a short random suffix so two documents in the same second never collide.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("s%s-%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}
