// Package publish posts the daily report as a draft blog entry via the
// Hatena AtomPub API.
package publish

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"protein-hunter/config"
)

// Result describes the outcome of one draft post attempt.
type Result struct {
	OK         bool
	Skipped    bool
	StatusCode int
	Endpoint   string
	Message    string
}

// Client posts Atom entries to a Hatena blog. With incomplete
// credentials every post is reported Skipped rather than failed, so a
// tracker can run without a blog configured.
type Client struct {
	cfg    config.PublisherConfig
	httpc  *http.Client
	logger *slog.Logger
}

// NewClient builds a publisher client.
func NewClient(cfg config.PublisherConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Endpoint returns the AtomPub collection URL, or "" when credentials
// are incomplete.
func (c *Client) Endpoint() string {
	if !c.configured() {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/atom/entry", c.cfg.BaseURL, c.cfg.UserID, c.cfg.BlogID)
}

func (c *Client) configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.UserID != "" && c.cfg.APIKey != "" && c.cfg.BlogID != ""
}

// PostDraft posts the markdown body as a draft entry titled title.
func (c *Client) PostDraft(ctx context.Context, title, markdown string) (*Result, error) {
	if !c.configured() {
		c.logger.Info("publisher credentials incomplete, skipping draft")
		return &Result{Skipped: true, Message: "publisher not configured"}, nil
	}
	endpoint := c.Endpoint()

	body := atomEntryXML(title, markdown)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build atom request: %w", err)
	}
	req.SetBasicAuth(c.cfg.UserID, c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Result{Endpoint: endpoint, Message: err.Error()}, fmt.Errorf("post draft: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	result := &Result{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
	}
	if resp.StatusCode >= 400 {
		result.Message = string(respBody)
		return result, fmt.Errorf("draft post returned status %d", resp.StatusCode)
	}
	result.OK = true
	c.logger.Info("draft posted", "status", resp.StatusCode, "endpoint", endpoint)
	return result, nil
}

func atomEntryXML(title, markdown string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<entry xmlns="http://www.w3.org/2005/Atom" xmlns:app="http://www.w3.org/2007/app">
  <title>%s</title>
  <content type="text/x-markdown">%s</content>
  <app:control><app:draft>yes</app:draft></app:control>
</entry>`, escapeXML(title), escapeXML(markdown))
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
