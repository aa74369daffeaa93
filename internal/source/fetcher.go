package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

// FetchConfig controls retries and timeouts of remote loads.
type FetchConfig struct {
	TimeoutSeconds int
	MaxRetries     int
	BaseBackoff    time.Duration
}

// Fetcher reads the data document from an http(s) URL or a local path.
type Fetcher struct {
	Client *http.Client
	Config FetchConfig
}

func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	return &Fetcher{
		Client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		Config: cfg,
	}
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Fetch returns the raw document at src.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if !isRemote(src) {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		return data, nil
	}
	return f.fetchRemote(ctx, src)
}

// shouldRetry reports whether a failed attempt is worth repeating.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter: base, 2*base, 4*base...
			backoff := f.Config.BaseBackoff * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(f.Config.BaseBackoff/5) + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}
			return body, nil
		}

		resp.Body.Close()
		if shouldRetry(nil, resp.StatusCode) {
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			continue
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
