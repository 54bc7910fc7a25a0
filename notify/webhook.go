// Package notify posts run alerts and summaries to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Webhook posts messages to a Discord-compatible webhook URL. A zero
// URL disables delivery without erroring, so callers need no nil
// checks around optional notification config.
type Webhook struct {
	url    string
	maxLen int
	httpc  *http.Client
	logger *slog.Logger
}

// NewWebhook builds a webhook notifier. maxLen caps the rendered
// message in runes; the Discord hard limit is 2000.
func NewWebhook(url string, maxLen int, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		url:    url,
		maxLen: maxLen,
		httpc:  &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Notify posts a titled message assembled from lines. The body is
// truncated to the configured rune ceiling before posting.
func (w *Webhook) Notify(ctx context.Context, title string, lines []string) error {
	if w.url == "" {
		w.logger.Debug("webhook url not set, skipping notification", "title", title)
		return nil
	}

	content := "**" + title + "**\n" + strings.Join(lines, "\n")
	if runes := []rune(content); len(runes) > w.maxLen {
		content = string(runes[:w.maxLen])
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
