package socialmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/errutil"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("scraper base url is not configured")
	ErrMalformed     = errors.New("malformed scraper payload")
)

// Client talks to the scraping vendor. One instance is shared by every
// platform for the lifetime of the process.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	// first retry delay; later ones grow exponentially with jitter
	initialInterval time.Duration
}

func NewClient(cfg *config.Config) *Client {
	limit := rate.Inf
	if cfg.Scraper.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Scraper.RatePerSecond)
	}
	burst := cfg.Scraper.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Scraper.BaseURL), "/"),
		apiKey:  cfg.Scraper.ApiKey,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:         rate.NewLimiter(limit, burst),
		timeout:         cfg.Scraper.Timeout,
		maxRetries:      max(cfg.Scraper.MaxRetries, 0),
		initialInterval: 250 * time.Millisecond,
	}
}

// statusError is a non-2xx vendor response.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("scraper responded %d", e.code) }

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformed) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

// GetJSON decodes GET {base}{path}?query into dst. It reports found=false on
// 404 and retries 5xx, 429 and transport errors with jittered backoff.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dst any) (bool, error) {
	if c.baseURL == "" {
		return false, ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var found bool
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		ok, err := c.do(ctx, u, dst)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		found = ok
		return nil
	}
	notify := func(err error, wait time.Duration) {
		zap.L().Debug("scraper request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return false, errutil.BadGateway(fmt.Sprintf("scraper request %s failed", path), err)
		}
		return false, fmt.Errorf("scraper request %s: %w", path, err)
	}
	return found, nil
}

func (c *Client) do(ctx context.Context, u string, dst any) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return true, nil
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the hashtags of a caption without the leading '#',
// in order of appearance and without duplicates.
func ExtractHashtags(caption string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(caption, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
