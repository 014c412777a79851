package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// Duration menu offered after a document is parsed, in minutes.
var durationMenu = []int{5, 10, 15, 20, 30, 45, 60}

// Cap on uploaded PDFs.
const maxPDFBytes = 20 << 20

var btnDuration = tele.Btn{Unique: "setdur"}

// Handler wires Telegram updates into the quiz service.
type Handler struct {
	bot             *tele.Bot
	service         *app.QuizService
	gateway         *Gateway
	backupChannelID int64
	log             *zap.Logger

	mu            sync.Mutex
	pendingCustom map[int64]string // chat -> session awaiting a custom duration reply
}

func NewHandler(bot *tele.Bot, service *app.QuizService, gateway *Gateway, backupChannelID int64, log *zap.Logger) *Handler {
	return &Handler{
		bot:             bot,
		service:         service,
		gateway:         gateway,
		backupChannelID: backupChannelID,
		log:             log,
		pendingCustom:   make(map[int64]string),
	}
}

// Register attaches all bot handlers.
func (h *Handler) Register() {
	h.bot.Handle("/start", h.onHelp)
	h.bot.Handle("/help", h.onHelp)
	h.bot.Handle("/quiz", h.onQuiz)
	h.bot.Handle("/result", h.onResult)
	h.bot.Handle("/solve", h.onSolve)
	h.bot.Handle(tele.OnDocument, h.onDocument)
	h.bot.Handle(tele.OnText, h.onText)
	h.bot.Handle(tele.OnPollAnswer, h.onPollAnswer)
	h.bot.Handle(&btnDuration, h.onDuration)
}

func (h *Handler) onHelp(c tele.Context) error {
	return c.Send("MCQ quiz bot ready. Use /quiz to start: upload a PDF with MCQs, pick a duration, and take the quiz. /result shows your score, /solve N explains a question.")
}

func (h *Handler) onQuiz(c tele.Context) error {
	return c.Send("Please upload the PDF containing MCQs. After parsing I'll ask for the quiz duration in minutes.")
}

func (h *Handler) onDocument(c tele.Context) error {
	doc := c.Message().Document
	if doc == nil {
		return nil
	}
	if !strings.EqualFold(filepath.Ext(doc.FileName), ".pdf") {
		return c.Reply("Please upload a PDF file.")
	}

	if h.backupChannelID != 0 {
		if err := h.gateway.ForwardDocument(c.Message(), h.backupChannelID); err != nil {
			h.log.Warn("backup forward failed", zap.Error(err))
		}
	}

	_ = c.Reply("PDF received. Parsing, this may take a few seconds.")

	rc, err := h.bot.File(&doc.File)
	if err != nil {
		h.log.Warn("download document", zap.Error(err))
		return c.Send("Could not download the file, please try again.")
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPDFBytes))
	if err != nil {
		h.log.Warn("read document", zap.Error(err))
		return c.Send("Could not read the file, please try again.")
	}

	session, err := h.service.CreateSession(context.Background(), c.Chat().ID, doc.FileName, data)
	switch {
	case errors.Is(err, domain.ErrNotPDF):
		return c.Reply("Please upload a PDF file.")
	case errors.Is(err, domain.ErrNoQuestions):
		return c.Send("No MCQs detected. Please send a clearly formatted MCQ PDF (numbered questions, options A/B/C/D).")
	case err != nil:
		h.log.Error("create session", zap.Error(err))
		return c.Send("Something went wrong while preparing the quiz, please try again.")
	}

	return c.Send(
		fmt.Sprintf("Parsed %d questions. Set quiz duration (minutes):", len(session.Questions)),
		durationKeyboard(session.ID),
	)
}

func (h *Handler) onDuration(c tele.Context) error {
	parts := strings.Split(c.Data(), "|")
	if len(parts) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid selection."})
	}
	sessionID, value := parts[0], parts[1]
	chatID := c.Chat().ID

	if value == "custom" {
		h.mu.Lock()
		h.pendingCustom[chatID] = sessionID
		h.mu.Unlock()
		return c.Respond(&tele.CallbackResponse{Text: "Send the number of minutes (1-1440) as a message now."})
	}

	minutes, err := strconv.Atoi(value)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid selection."})
	}
	return h.startQuiz(c, chatID, sessionID, minutes)
}

func (h *Handler) onText(c tele.Context) error {
	chatID := c.Chat().ID
	text := strings.TrimSpace(c.Text())

	h.mu.Lock()
	sessionID, awaiting := h.pendingCustom[chatID]
	h.mu.Unlock()

	if !awaiting {
		if strings.HasPrefix(text, "/") {
			return c.Send("Unknown command. Use /quiz to start or send a PDF with MCQs.")
		}
		return c.Send("Send /quiz and then upload your MCQ PDF, or use /help.")
	}

	minutes, err := strconv.Atoi(text)
	if err != nil {
		return c.Reply("Send the quiz duration as a whole number of minutes (1-1440).")
	}
	return h.startQuiz(c, chatID, sessionID, minutes)
}

func (h *Handler) startQuiz(c tele.Context, chatID int64, sessionID string, minutes int) error {
	err := h.service.StartQuiz(context.Background(), chatID, sessionID, minutes)
	switch {
	case errors.Is(err, domain.ErrBadDuration):
		// Keep the pending entry: the user can retry with a valid number.
		return h.respondOrReply(c, "Please provide a duration between 1 and 1440 minutes.")
	case errors.Is(err, domain.ErrSessionNotFound):
		h.clearPending(chatID)
		return h.respondOrReply(c, "Session not found. Please resend the PDF.")
	case errors.Is(err, domain.ErrWrongPhase):
		h.clearPending(chatID)
		return h.respondOrReply(c, "This quiz has already started.")
	case err != nil:
		h.log.Error("start quiz", zap.Int64("chat", chatID), zap.String("session", sessionID), zap.Error(err))
		return h.respondOrReply(c, "Could not start the quiz, please try again.")
	}

	h.clearPending(chatID)

	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("Quiz will run for %d minutes.", minutes)})
	}
	return nil
}

func (h *Handler) clearPending(chatID int64) {
	h.mu.Lock()
	delete(h.pendingCustom, chatID)
	h.mu.Unlock()
}

// respondOrReply answers a callback query when present, otherwise replies in chat.
func (h *Handler) respondOrReply(c tele.Context, text string) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: text})
	}
	return c.Reply(text)
}

func (h *Handler) onPollAnswer(c tele.Context) error {
	answer := c.PollAnswer()
	sender := c.Sender()
	if answer == nil || sender == nil {
		return nil
	}

	err := h.service.RecordAnswer(context.Background(), answer.PollID, sender.ID, answer.Options)
	if errors.Is(err, domain.ErrPollNotFound) || errors.Is(err, domain.ErrSessionNotFound) {
		// Poll from an older bot instance or an unrelated chat.
		return nil
	}
	if err != nil {
		h.log.Warn("record answer", zap.String("poll", answer.PollID), zap.Error(err))
	}
	return nil
}

func (h *Handler) onResult(c tele.Context) error {
	result, err := h.service.Result(context.Background(), c.Chat().ID, c.Sender().ID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.Reply("No quiz session found. Send /quiz to start one.")
	case errors.Is(err, domain.ErrNoAnswers):
		return c.Reply("You have not answered any polls yet.")
	case err != nil:
		h.log.Error("result", zap.Error(err))
		return c.Reply("Could not load your result, please try again.")
	}
	return c.Send(fmt.Sprintf("Your result so far:\n✅ Correct: %d\n❌ Wrong: %d\n📝 Attempted: %d/%d",
		result.Correct, result.Wrong, result.Attempted, result.Total))
}

func (h *Handler) onSolve(c tele.Context) error {
	parts := strings.Fields(c.Text())
	if len(parts) < 2 {
		return c.Reply("Usage: /solve {question_number}")
	}
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return c.Reply("Please provide a valid question number.")
	}

	explanation, err := h.service.Explain(context.Background(), c.Chat().ID, number)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.Reply("No quiz session found. Send /quiz to start one.")
	case errors.Is(err, domain.ErrQuestionNotFound):
		return c.Reply("Invalid question number.")
	case err != nil:
		h.log.Error("solve", zap.Error(err))
		return c.Reply("Could not resolve that question, please try again.")
	}

	return c.Send(formatExplanation(explanation))
}

func formatExplanation(e domain.Explanation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d:\n%s\n\nOptions:\n", e.Ordinal, e.Text)
	for i, opt := range e.Options {
		fmt.Fprintf(&b, "%c. %s\n", 'A'+i, opt)
	}
	b.WriteString("\nAI explanation:\n")
	b.WriteString(e.Explanation)
	return b.String()
}

func durationKeyboard(sessionID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(durationMenu)+1)
	for _, minutes := range durationMenu {
		rows = append(rows, markup.Row(
			markup.Data(fmt.Sprintf("%d min", minutes), btnDuration.Unique, sessionID, strconv.Itoa(minutes)),
		))
	}
	rows = append(rows, markup.Row(markup.Data("Custom", btnDuration.Unique, sessionID, "custom")))
	markup.Inline(rows...)
	return markup
}
