package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizbot/internal/app"
	"quizbot/internal/domain"
	"quizbot/internal/infra/memory"
)

func TestLiveFeedStreamsStandings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	correct := 1
	session := &domain.Session{
		ChatID: 42,
		ID:     "s-1",
		Phase:  domain.PhaseRunning,
		Questions: []domain.Question{
			{Ordinal: 1, Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: &correct},
		},
		Scores:    make(map[int64]*domain.UserScore),
		CreatedAt: time.Now(),
		StartedAt: time.Now(),
		EndsAt:    time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.SavePollRef(ctx, domain.PollRef{PollID: "p-1", ChatID: 42, SessionID: "s-1", Ordinal: 1}); err != nil {
		t.Fatalf("save poll ref: %v", err)
	}

	service := app.NewQuizService(store, noopGateway{}, noopExtractor{}, noopOracle{}, app.NewScheduler(), zap.NewNop())
	handler := NewLiveHandler(service, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/live", handler.ServeLive)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/live?chatId=42&sessionId=s-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot arrives before any answers.
	first := readStandings(t, conn)
	if len(first.Payload.Entries) != 0 {
		t.Fatalf("expected empty initial standings, got %+v", first.Payload.Entries)
	}

	if err := service.RecordAnswer(ctx, "p-1", 7, []int{1}); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	update := readStandings(t, conn)
	if len(update.Payload.Entries) != 1 {
		t.Fatalf("expected one entry, got %+v", update.Payload.Entries)
	}
	entry := update.Payload.Entries[0]
	if entry.UserID != 7 || entry.Correct != 1 || entry.Attempted != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestLiveFeedRejectsBadRequests(t *testing.T) {
	store := memory.NewSessionStore()
	service := app.NewQuizService(store, noopGateway{}, noopExtractor{}, noopOracle{}, app.NewScheduler(), zap.NewNop())
	handler := NewLiveHandler(service, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(handler.ServeLive))
	defer server.Close()

	resp, err := http.Get(server.URL + "?chatId=nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func readStandings(t *testing.T, conn *websocket.Conn) outboundMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg outboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msg.Type != "standings" {
		t.Fatalf("expected standings frame, got %q", msg.Type)
	}
	return msg
}

type noopGateway struct{}

func (noopGateway) SendPoll(context.Context, int64, string, []string) (string, error) {
	return "poll", nil
}
func (noopGateway) SendMessage(context.Context, int64, string) error { return nil }
func (noopGateway) SendDirect(context.Context, int64, string) error  { return nil }

type noopExtractor struct{}

func (noopExtractor) ExtractText(context.Context, []byte) string { return "" }

type noopOracle struct{}

func (noopOracle) Resolve(context.Context, string, []string) (int, string) { return -1, "" }
