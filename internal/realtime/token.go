package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"doulitsa/internal/models"
)

// ExpirySkew is how long before expires_at a cached token is considered stale.
const ExpirySkew = 30 * time.Second

// fetchTimeout bounds one shared exchange including its retries.
const fetchTimeout = 30 * time.Second

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	d := c.InitialBackoff << attempt
	if d > c.MaxBackoff || d <= 0 {
		d = c.MaxBackoff
	}
	return d
}

// ExchangeError is a non-2xx answer from the exchange endpoint.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *ExchangeError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

// TokenSource exchanges an access token for realtime tokens and caches the
// result until shortly before it expires. Concurrent callers share a fetch.
type TokenSource struct {
	endpoint    string
	accessToken string
	client      *http.Client
	retry       RetryConfig
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	group  singleflight.Group
	mu     sync.Mutex
	cached *models.RealtimeToken
}

func NewTokenSource(endpoint, accessToken string, client *http.Client) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      client,
		retry:       DefaultRetryConfig(),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// WithRetry replaces the retry policy.
func (ts *TokenSource) WithRetry(c RetryConfig) *TokenSource {
	ts.retry = c
	return ts
}

// WithClock replaces the time source and the backoff sleep.
func (ts *TokenSource) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *TokenSource {
	if now != nil {
		ts.now = now
	}
	if sleep != nil {
		ts.sleep = sleep
	}
	return ts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Token returns a realtime token valid for at least ExpirySkew.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	tok, err := ts.RealtimeToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// RealtimeToken is Token with the expiry.
func (ts *TokenSource) RealtimeToken(ctx context.Context) (models.RealtimeToken, error) {
	if tok, ok := ts.fresh(); ok {
		return tok, nil
	}

	// The shared fetch outlives any single caller; each caller waits on its
	// own ctx.
	ch := ts.group.DoChan("token", func() (any, error) {
		if tok, ok := ts.fresh(); ok {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		tok, err := ts.fetchWithRetry(fetchCtx)
		if err != nil {
			return models.RealtimeToken{}, err
		}
		ts.mu.Lock()
		ts.cached = &tok
		ts.mu.Unlock()
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return models.RealtimeToken{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.RealtimeToken{}, res.Err
		}
		return res.Val.(models.RealtimeToken), nil
	}
}

func (ts *TokenSource) fresh() (models.RealtimeToken, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.cached == nil || !ts.now().Before(ts.cached.ExpiresAt.Add(-ExpirySkew)) {
		return models.RealtimeToken{}, false
	}
	return *ts.cached, true
}

// Invalidate drops the cached token.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.cached = nil
	ts.mu.Unlock()
}

func (ts *TokenSource) fetchWithRetry(ctx context.Context) (models.RealtimeToken, error) {
	var lastErr error
	for attempt := 0; attempt <= ts.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.RealtimeToken{}, err
		}

		tok, err := ts.fetch(ctx)
		if err == nil {
			return tok, nil
		}
		lastErr = err

		var exErr *ExchangeError
		if errors.As(err, &exErr) && !exErr.Retryable() {
			return models.RealtimeToken{}, err
		}
		if attempt < ts.retry.MaxRetries {
			if err := ts.sleep(ctx, ts.retry.backoff(attempt)); err != nil {
				return models.RealtimeToken{}, err
			}
		}
	}
	return models.RealtimeToken{}, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (ts *TokenSource) fetch(ctx context.Context) (models.RealtimeToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.endpoint, nil)
	if err != nil {
		return models.RealtimeToken{}, err
	}
	req.Header.Set("Authorization", "Bearer "+ts.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := ts.client.Do(req)
	if err != nil {
		return models.RealtimeToken{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return models.RealtimeToken{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.RealtimeToken{}, &ExchangeError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tok models.RealtimeToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return models.RealtimeToken{}, fmt.Errorf("decode realtime token: %w", err)
	}
	if tok.Token == "" || tok.ExpiresAt.IsZero() {
		return models.RealtimeToken{}, errors.New("token exchange: empty token")
	}
	return tok, nil
}
