// Package extract wraps the external document-to-text service. PDF rendering
// and the OCR fallback live behind that service; this client only ships bytes
// out and text back.
package extract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Cap on the extracted text we accept back.
const maxTextBytes = 4 << 20

// Client posts PDF bytes to the extraction service and returns the plain text
// it produces. Any failure, including an unconfigured service, yields an
// empty string; downstream treats that as zero questions.
type Client struct {
	url   string
	httpc *http.Client
	log   *zap.Logger
}

func NewClient(url string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:   url,
		httpc: &http.Client{Timeout: timeout},
		log:   log,
	}
}

func (c *Client) ExtractText(ctx context.Context, pdf []byte) string {
	if c.url == "" {
		c.log.Warn("extractor service not configured, treating document as empty")
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(pdf))
	if err != nil {
		c.log.Warn("build extract request", zap.Error(err))
		return ""
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("extract request failed", zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("extract service returned non-200", zap.Int("status", resp.StatusCode))
		return ""
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBytes))
	if err != nil {
		c.log.Warn("read extract response", zap.Error(err))
		return ""
	}
	return string(text)
}
