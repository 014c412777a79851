package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGeminiParsesAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"B. Paris is the capital of France."}]}}]}`))
	}))
	defer server.Close()

	g := NewGemini("test-key", "test-model", server.URL, time.Second, zap.NewNop())
	index, explanation := g.Resolve(context.Background(), "Capital of France?", []string{"Berlin", "Paris"})
	if index != 1 {
		t.Fatalf("expected option index 1, got %d", index)
	}
	if explanation == "" {
		t.Fatalf("expected explanation text")
	}
}

func TestGeminiNeverFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGemini("test-key", "test-model", server.URL, time.Second, zap.NewNop())
	index, explanation := g.Resolve(context.Background(), "Q?", []string{"a", "b"})
	if index != -1 || explanation == "" {
		t.Fatalf("expected unresolved answer with failure text, got %d %q", index, explanation)
	}

	// Missing API key short-circuits without a network call.
	unconfigured := NewGemini("", "", server.URL, time.Second, zap.NewNop())
	if index, _ := unconfigured.Resolve(context.Background(), "Q?", []string{"a", "b"}); index != -1 {
		t.Fatalf("expected -1 without API key, got %d", index)
	}
}

func TestParseAnswerIndex(t *testing.T) {
	cases := []struct {
		text    string
		options int
		want    int
	}{
		{"A. because of arithmetic", 4, 0},
		{"The answer is C, since...", 4, 2},
		{"d) rome", 4, 3},
		{"E is correct", 4, -1}, // out of range for 4 options
		{"no option named", 4, -1},
	}
	for _, tc := range cases {
		if got := parseAnswerIndex(tc.text, tc.options); got != tc.want {
			t.Fatalf("parseAnswerIndex(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestCachedCollapsesRepeatLookups(t *testing.T) {
	inner := &countingResolver{index: 1, explanation: "B"}
	cached := NewCached(inner, time.Minute)

	ctx := context.Background()
	if index, _ := cached.Resolve(ctx, "Q?", []string{"a", "b"}); index != 1 {
		t.Fatalf("expected resolved index")
	}
	if index, _ := cached.Resolve(ctx, "Q?", []string{"a", "b"}); index != 1 {
		t.Fatalf("expected cached index")
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.calls)
	}

	// A different question is its own cache entry.
	_, _ = cached.Resolve(ctx, "Other?", []string{"a", "b"})
	if inner.calls != 2 {
		t.Fatalf("expected second upstream call, got %d", inner.calls)
	}
}

func TestCachedSkipsFailures(t *testing.T) {
	inner := &countingResolver{index: -1, explanation: "oracle down"}
	cached := NewCached(inner, time.Minute)

	ctx := context.Background()
	_, _ = cached.Resolve(ctx, "Q?", []string{"a", "b"})
	_, _ = cached.Resolve(ctx, "Q?", []string{"a", "b"})
	if inner.calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", inner.calls)
	}
}

type countingResolver struct {
	index       int
	explanation string
	calls       int
}

func (r *countingResolver) Resolve(_ context.Context, _ string, _ []string) (int, string) {
	r.calls++
	return r.index, r.explanation
}
