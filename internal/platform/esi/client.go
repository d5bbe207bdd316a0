// Package esi is the REST client for the upstream order source: paginated
// region order books, daily market history, and per-character resting
// orders.
package esi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// rateLimitKey groups all upstream calls under one request budget.
const rateLimitKey = "esi"

// Client talks to the upstream API. Every request passes through the rate
// limiter first and carries a bounded per-request timeout, so one stuck page
// can fail the region's cycle but never wedge the caller indefinitely.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     domain.RateLimiter
	rateLimit   int
	rateWindow  time.Duration
	pageTimeout time.Duration
}

// ClientConfig holds the upstream connection parameters.
type ClientConfig struct {
	BaseURL     string
	UserAgent   string
	RateLimit   int           // requests per RateWindow
	RateWindow  time.Duration // sliding window size
	PageTimeout time.Duration // per-request deadline
}

// NewClient creates an upstream client. The limiter may be nil, in which
// case requests are not throttled (tests).
func NewClient(cfg ClientConfig, limiter domain.RateLimiter) *Client {
	pageTimeout := cfg.PageTimeout
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: pageTimeout},
		limiter:     limiter,
		rateLimit:   cfg.RateLimit,
		rateWindow:  cfg.RateWindow,
		pageTimeout: pageTimeout,
	}
}

// doGet performs one throttled GET and returns the body plus the total page
// count communicated in the X-Pages header (1 when the header is absent).
func (c *Client) doGet(ctx context.Context, path, token string) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitKey, c.rateLimit, c.rateWindow); err != nil {
			return nil, 0, fmt.Errorf("esi: rate limit: %w", err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("esi: create request %s: %w", path, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("esi: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, 0, fmt.Errorf("esi: get %s: %w", path, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("esi: get %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("esi: read %s: %w", path, err)
	}

	pages := 1
	if h := resp.Header.Get("X-Pages"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n > 0 {
			pages = n
		}
	}

	return body, pages, nil
}
