package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestExtractTextReturnsServiceOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "%PDF-fake" {
			t.Errorf("unexpected request body %q", body)
		}
		_, _ = w.Write([]byte("1. Question?\nA) yes\nB) no\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	text := client.ExtractText(context.Background(), []byte("%PDF-fake"))
	if text == "" {
		t.Fatalf("expected extracted text")
	}
}

func TestExtractTextSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	if text := client.ExtractText(context.Background(), []byte("%PDF")); text != "" {
		t.Fatalf("expected empty text on server error, got %q", text)
	}

	// Unconfigured service behaves the same way.
	unconfigured := NewClient("", time.Second, zap.NewNop())
	if text := unconfigured.ExtractText(context.Background(), []byte("%PDF")); text != "" {
		t.Fatalf("expected empty text without a service URL, got %q", text)
	}

	// So does an unreachable one.
	server.Close()
	if text := client.ExtractText(context.Background(), []byte("%PDF")); text != "" {
		t.Fatalf("expected empty text when unreachable, got %q", text)
	}
}
