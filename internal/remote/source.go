// Package remote fetches the bundle manifest and per-category payloads.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/kotosync/kotosync/internal/model"
	"github.com/kotosync/kotosync/internal/worker"
)

const maxAttempts = 3

// sleepFunc is overridable in tests to skip backoff delays.
var sleepFunc = sleepContext

// sleepContext waits out d or returns early when ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchError is a typed network failure: transport, status, or decode.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError marks a non-2xx response so the retry loop can classify it.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.status)
}

// Source fetches bundle data over HTTP
type Source struct {
	client  *http.Client
	limiter *worker.Limiter
	cfg     model.RemoteConfig
}

// NewSource creates a Source with the given configuration
func NewSource(cfg model.RemoteConfig) *Source {
	if cfg.RatePerSecond <= 0 {
		// Unlimited; a zero limit would admit nothing.
		cfg.RatePerSecond = float64(rate.Inf)
		cfg.RateBurst = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8_000_000
	}
	return &Source{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		limiter: worker.NewLimiter(cfg.RatePerSecond, cfg.RateBurst),
		cfg:     cfg,
	}
}

// FetchManifest retrieves the category index. Bounded by the manifest
// timeout; failures are typed, never panics.
func (s *Source) FetchManifest(ctx context.Context) (*model.Manifest, error) {
	var manifest model.Manifest
	if err := s.fetchJSON(ctx, s.cfg.ManifestURL, s.cfg.ManifestTimeout, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// FetchCategory retrieves the raw entries for one category key. Bounded by
// the category timeout, which is larger because payloads are larger.
func (s *Source) FetchCategory(ctx context.Context, key string) ([]model.RawEntry, error) {
	rawURL := fmt.Sprintf(s.cfg.CategoryURL, url.PathEscape(key))
	var entries []model.RawEntry
	if err := s.fetchJSON(ctx, rawURL, s.cfg.CategoryTimeout, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// fetchJSON GETs rawURL and decodes the body into v, retrying transient
// failures with doubling backoff.
func (s *Source) fetchJSON(ctx context.Context, rawURL string, timeout time.Duration, v interface{}) error {
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepFunc(ctx, backoff); err != nil {
				return &FetchError{URL: rawURL, Err: err}
			}
			backoff *= 2
		}

		lastErr = s.fetchOnce(ctx, rawURL, timeout, v)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			break
		}
	}

	return &FetchError{URL: rawURL, Err: lastErr}
}

func (s *Source) fetchOnce(ctx context.Context, rawURL string, timeout time.Duration, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	body := io.LimitReader(resp.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// isRetryable reports whether a fetch attempt is worth repeating: 5xx and
// 429 responses, and transport-level failures. Decode errors and other 4xx
// are permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ue *url.Error
	return errors.As(err, &ue)
}

// newProxyFunc builds the transport proxy function. Falls back to the
// standard environment variables when no explicit proxy is configured.
func newProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
