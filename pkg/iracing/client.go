// Package iracing talks to the members-ng statistics API. Every data
// endpoint answers with a small pointer document whose link attribute points
// at the real payload on a CDN; search endpoints may instead answer with a
// chunk manifest that has to be reassembled. All of that is hidden behind
// the fetch methods here.
package iracing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/r0mai/iracing-stats/log"
)

const DefaultBaseURL = "https://members-ng.iracing.com"

const (
	// upstream requests fail transiently quite often, give them a few tries
	maxAttempts = 10
	// pause after a 429 before asking again
	defaultRateLimitDelay = 2 * time.Second
)

// ErrForbidden marks a document the logged-in account may not read (mostly
// hosted sessions with restricted visibility). Callers are expected to skip
// such documents and carry on.
var ErrForbidden = errors.New("upstream denied access to document")

// RetriesExhaustedError is returned when a request kept failing with
// retryable statuses until the attempt budget ran out.
type RetriesExhaustedError struct {
	URL        string
	Attempts   int
	LastStatus int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts (last status %d)",
		e.URL, e.Attempts, e.LastStatus)
}

// RateLimit mirrors the x-ratelimit-* headers of the last upstream response.
type RateLimit struct {
	Limit     int64
	Remaining int64
	Reset     int64
}

type Credentials struct {
	Email    string
	Password string
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	creds          Credentials
	rateLimitDelay time.Duration
	logger         *log.Logger

	mu        sync.Mutex
	rateLimit RateLimit
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithRateLimitDelay(d time.Duration) Option {
	return func(c *Client) { c.rateLimitDelay = d }
}

// NewClient creates a client for the upstream API. The session cookie issued
// by Authenticate lives in the client's cookie jar.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Jar: jar, Timeout: 5 * time.Minute},
		limiter:        rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		creds:          creds,
		rateLimitDelay: defaultRateLimitDelay,
		logger:         log.GetLogger("iracing"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Authenticate logs in at /auth. The password is expected in the encoded
// form the upstream wants, it is passed through untouched.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"email":    c.creds.Email,
		"password": c.creds.Password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authenticate: unexpected status %d", resp.StatusCode)
	}
	c.logger.Debug("authenticated", log.String("email", c.creds.Email))
	return nil
}

// RateLimitState returns the rate limit info of the most recent response.
func (c *Client) RateLimitState() RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

func (c *Client) updateRateLimit(h http.Header) {
	parse := func(key string) (int64, bool) {
		v := h.Get(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := parse("x-ratelimit-limit"); ok {
		c.rateLimit.Limit = v
	}
	if v, ok := parse("x-ratelimit-remaining"); ok {
		c.rateLimit.Remaining = v
	}
	if v, ok := parse("x-ratelimit-reset"); ok {
		c.rateLimit.Reset = v
	}
}

// getWithRetry performs one GET with the full retry taxonomy: server errors
// and 429 are retried within the attempt budget, a 401 triggers a single
// reauthentication, a 403 surfaces as ErrForbidden, anything else fails
// outright.
//
//nolint:funlen,gocognit,cyclop // the status taxonomy wants to live in one place
func (c *Client) getWithRetry(
	ctx context.Context,
	rawURL string,
	params url.Values,
) ([]byte, error) {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	reauthed := false
	lastStatus := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", reqURL, err)
		}
		c.updateRateLimit(resp.Header)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response of %s: %w", reqURL, err)
		}
		lastStatus = resp.StatusCode

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if reauthed {
				return nil, fmt.Errorf("get %s: still unauthorized after reauth", reqURL)
			}
			c.logger.Info("session expired, reauthenticating")
			if err := c.Authenticate(ctx); err != nil {
				return nil, err
			}
			reauthed = true
			// the retry after a fresh login does not count against the budget
			attempt--

		case resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("get %s: %w", reqURL, ErrForbidden)

		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited, backing off",
				log.String("url", rawURL),
				log.Duration("delay", c.rateLimitDelay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.rateLimitDelay):
			}

		case resp.StatusCode >= 500:
			c.logger.Warn("server error, retrying",
				log.String("url", rawURL),
				log.Int("status", resp.StatusCode),
				log.Int("attempt", attempt))

		default:
			return nil, fmt.Errorf("get %s: unexpected status %d: %s",
				reqURL, resp.StatusCode, string(body))
		}
	}
	return nil, &RetriesExhaustedError{
		URL:        rawURL,
		Attempts:   maxAttempts,
		LastStatus: lastStatus,
	}
}

type pointerDoc struct {
	Link string `json:"link"`
}

// getAndRead fetches a data endpoint and follows its pointer to the real
// payload.
func (c *Client) getAndRead(
	ctx context.Context,
	suffix string,
	params url.Values,
) ([]byte, error) {
	raw, err := c.getWithRetry(ctx, c.baseURL+suffix, params)
	if err != nil {
		return nil, err
	}
	var pointer pointerDoc
	if err := json.Unmarshal(raw, &pointer); err != nil {
		return nil, fmt.Errorf("decode pointer of %s: %w", suffix, err)
	}
	if pointer.Link == "" {
		return nil, fmt.Errorf("pointer of %s carries no link", suffix)
	}
	return c.getWithRetry(ctx, pointer.Link, params)
}

type chunkManifest struct {
	Data struct {
		ChunkInfo struct {
			BaseDownloadURL string   `json:"base_download_url"`
			ChunkFileNames  []string `json:"chunk_file_names"`
		} `json:"chunk_info"`
	} `json:"data"`
}

// getAndReadChunked fetches a search endpoint whose payload is split into
// chunk files, and concatenates them in manifest order. A manifest without a
// download url means an empty result.
func (c *Client) getAndReadChunked(
	ctx context.Context,
	suffix string,
	params url.Values,
) ([]json.RawMessage, error) {
	raw, err := c.getWithRetry(ctx, c.baseURL+suffix, params)
	if err != nil {
		return nil, err
	}
	var manifest chunkManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode chunk manifest of %s: %w", suffix, err)
	}
	info := manifest.Data.ChunkInfo
	if info.BaseDownloadURL == "" {
		return []json.RawMessage{}, nil
	}

	items := make([]json.RawMessage, 0)
	for _, name := range info.ChunkFileNames {
		chunk, err := c.getWithRetry(ctx, info.BaseDownloadURL+name, nil)
		if err != nil {
			return nil, err
		}
		var part []json.RawMessage
		if err := json.Unmarshal(chunk, &part); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", name, err)
		}
		items = append(items, part...)
	}
	return items, nil
}
