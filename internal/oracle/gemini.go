// Package oracle wraps the LLM answer oracle: question and options in,
// best-guess option index and explanation out. The oracle never fails from
// the caller's point of view; any internal error comes back as index -1 with
// a text describing what went wrong.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Resolver is the text-in/text-out answer oracle contract.
type Resolver interface {
	Resolve(ctx context.Context, question string, options []string) (index int, explanation string)
}

// Gemini calls a generateContent-style REST endpoint.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

func NewGemini(apiKey, model, baseURL string, timeout time.Duration, log *zap.Logger) *Gemini {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Resolve(ctx context.Context, question string, options []string) (int, string) {
	if g.apiKey == "" {
		return -1, "Answer oracle is not configured; set GEMINI_API_KEY for real answers."
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(question, options)}}}},
	})
	if err != nil {
		return -1, fmt.Sprintf("Oracle request could not be built: %v", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return -1, fmt.Sprintf("Oracle request could not be built: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		g.log.Warn("oracle call failed", zap.Error(err))
		return -1, fmt.Sprintf("Oracle call failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("oracle returned non-200", zap.Int("status", resp.StatusCode))
		return -1, fmt.Sprintf("Oracle call failed with status %d.", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return -1, fmt.Sprintf("Oracle response could not be read: %v", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return -1, fmt.Sprintf("Oracle response could not be parsed: %v", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return -1, "Oracle returned an empty answer."
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	return parseAnswerIndex(text, len(options)), text
}

func buildPrompt(question string, options []string) string {
	var b strings.Builder
	b.WriteString("You are grading a multiple-choice question.\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nOptions:\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "%c. %s\n", 'A'+i, opt)
	}
	b.WriteString("\nReply with the letter of the correct option, then a short explanation.")
	return b.String()
}

var answerLetter = regexp.MustCompile(`\b([A-Ea-e])\b`)

// parseAnswerIndex pulls the first standalone option letter out of the
// oracle's reply. -1 means the reply named no usable option.
func parseAnswerIndex(text string, optionCount int) int {
	match := answerLetter.FindStringSubmatch(text)
	if match == nil {
		return -1
	}
	letter := strings.ToUpper(match[1])
	index := int(letter[0] - 'A')
	if index < 0 || index >= optionCount {
		return -1
	}
	return index
}
