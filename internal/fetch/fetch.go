// Package fetch downloads source documents over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// ErrTooLarge is returned when a body exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("response body exceeds size limit")

// StatusError is a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Options tunes the client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries uint64
	Backoff time.Duration
	// RequestsPerSecond limits request starts across all goroutines.
	// Zero disables the limit.
	RequestsPerSecond float64
	MaxBytes          int64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UserAgent:         "feeload/1.0",
		Timeout:           60 * time.Second,
		Retries:           3,
		Backoff:           500 * time.Millisecond,
		RequestsPerSecond: 2,
		MaxBytes:          64 << 20,
	}
}

// Client fetches documents with retry and a shared rate limit.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
	log     zerolog.Logger
}

// New creates a Client. A nil httpClient uses one with opts.Timeout.
func New(httpClient *http.Client, opts Options, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     log,
	}
}

// Fetch returns the body of url. Transport errors, 429 and 5xx responses are
// retried with exponential backoff; other statuses fail at once.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	backoff := retry.WithMaxRetries(c.opts.Retries, retry.NewExponential(max(c.opts.Backoff, time.Millisecond)))

	var body []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		b, err := c.get(ctx, url)
		if err == nil {
			body = b
			return nil
		}
		if ctx.Err() != nil || !transient(err) {
			return err
		}
		c.log.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("retrying fetch")
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	r := io.Reader(resp.Body)
	if c.opts.MaxBytes > 0 {
		r = io.LimitReader(resp.Body, c.opts.MaxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if c.opts.MaxBytes > 0 && int64(len(body)) > c.opts.MaxBytes {
		return nil, fmt.Errorf("GET %s: %w (%d bytes)", url, ErrTooLarge, c.opts.MaxBytes)
	}
	return body, nil
}

func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return !errors.Is(err, ErrTooLarge)
}
