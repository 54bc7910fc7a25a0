// Package search fetches marketplace listings from the Rakuten Ichiba
// item search API, one keyword at a time.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"protein-hunter/config"
	"protein-hunter/models"
)

// pageCacheSize bounds the in-process page cache. A run touches at most
// a few pages per catalog entry, so this comfortably covers one run.
const pageCacheSize = 128

// Client issues paginated keyword searches against the configured
// endpoint. Pages already seen during the process lifetime are served
// from an LRU cache so retried entries do not re-hit the API.
type Client struct {
	cfg     config.SearchConfig
	httpc   *http.Client
	cache   *lru.Cache[string, []models.RawListing]
	metrics *Metrics
	logger  *slog.Logger
}

// NewClient builds a search client. metrics may be nil.
func NewClient(cfg config.SearchConfig, metrics *Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []models.RawListing](pageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Search returns up to total listings for keyword, cheapest first as
// ordered by the API. It stops early when a page comes back short.
func (c *Client) Search(ctx context.Context, keyword string, total int) ([]models.RawListing, error) {
	if c.cfg.AppID == "" {
		return nil, ErrMissingAppID
	}
	if total <= 0 {
		return nil, nil
	}

	pages := (total + c.cfg.PageSize - 1) / c.cfg.PageSize
	if pages > c.cfg.MaxPages {
		pages = c.cfg.MaxPages
	}

	listings := make([]models.RawListing, 0, total)
	for page := 1; page <= pages; page++ {
		key := fmt.Sprintf("%s|%d|%d", keyword, page, c.cfg.PageSize)
		if cached, ok := c.cache.Get(key); ok {
			c.metrics.IncCacheHit()
			listings = append(listings, cached...)
			if len(cached) < c.cfg.PageSize {
				break
			}
			continue
		}

		if page > 1 {
			if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
				return nil, err
			}
		}

		batch, err := c.fetchPage(ctx, keyword, page)
		if err != nil {
			c.metrics.IncError(errorTypeLabel(err))
			return nil, fmt.Errorf("search %q page %d: %w", keyword, page, err)
		}
		c.cache.Add(key, batch)
		c.metrics.AddItems(len(batch))
		listings = append(listings, batch...)

		if len(batch) < c.cfg.PageSize {
			break
		}
	}

	if len(listings) > total {
		listings = listings[:total]
	}
	c.logger.Debug("search complete", "keyword", keyword, "listings", len(listings))
	return listings, nil
}

func (c *Client) fetchPage(ctx context.Context, keyword string, page int) ([]models.RawListing, error) {
	params := url.Values{}
	params.Set("applicationId", c.cfg.AppID)
	params.Set("keyword", keyword)
	params.Set("hits", strconv.Itoa(c.cfg.PageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("sort", "+itemPrice")
	params.Set("format", "json")
	params.Set("formatVersion", "2")
	if c.cfg.AffiliateID != "" {
		params.Set("affiliateId", c.cfg.AffiliateID)
	}
	if c.cfg.AccessKey != "" {
		params.Set("accessKey", c.cfg.AccessKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	c.metrics.IncRequest("page")
	start := time.Now()
	resp, err := c.httpc.Do(req)
	c.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, body)
	}
	return decodePage(body)
}

// searchPage tolerates both payload generations: formatVersion=2 uses a
// lowercase plural with bare listing objects; the legacy shape nests
// each listing under an "Item" wrapper. Case-insensitive field matching
// lands both spellings in one slice of raw messages.
type searchPage struct {
	Items            []json.RawMessage `json:"items"`
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description"`
}

func decodePage(body []byte) ([]models.RawListing, error) {
	var page searchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if page.Error != "" {
		return nil, APIError{Code: page.Error, Description: page.ErrorDescription}
	}

	listings := make([]models.RawListing, 0, len(page.Items))
	for _, raw := range page.Items {
		var wrapped struct {
			Item *models.RawListing `json:"Item"`
		}
		if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Item != nil {
			listings = append(listings, *wrapped.Item)
			continue
		}
		var listing models.RawListing
		if err := json.Unmarshal(raw, &listing); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	return err
}

func classifyStatusError(status int, body []byte) error {
	base := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized{Err: base}
	case status == http.StatusTooManyRequests:
		return ErrRateLimited{Err: base}
	case status >= 500:
		return ErrServer{Err: base}
	}
	// The API reports bad parameters as 4xx with a structured body.
	var page searchPage
	if err := json.Unmarshal(body, &page); err == nil && page.Error != "" {
		return APIError{Code: page.Error, Description: page.ErrorDescription}
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
