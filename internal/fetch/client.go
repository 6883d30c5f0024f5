package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind classifies the outcome of a fetch.
//
// Expected negatives (a 404, a non-retryable 4xx) are values, not
// errors, so callers cannot accidentally treat them as crashes.
type Kind int

const (
	// KindOK means a 200 response; the body is available.
	KindOK Kind = iota

	// KindNotFound means a 404 or another non-retryable 4xx. This is
	// a valid negative result, never retried.
	KindNotFound

	// KindRateLimited means 429 responses persisted through every
	// retry.
	KindRateLimited

	// KindServerError means 5xx responses persisted through every
	// retry.
	KindServerError

	// KindNetworkFailure means transport-level errors (timeout,
	// refused connection) persisted through every retry.
	KindNetworkFailure
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindNetworkFailure:
		return "network failure"
	}
	return "unknown"
}

// Result is the outcome of a page fetch. Body is set only for KindOK.
type Result struct {
	Kind       Kind
	Body       string
	StatusCode int
}

// OK reports whether the fetch returned a usable body.
func (r Result) OK() bool { return r.Kind == KindOK }

// ErrDownloadFailed is returned by FetchBytes when the resource could
// not be retrieved.
var ErrDownloadFailed = errors.New("download failed")

// Options configure retry behavior for a Client.
type Options struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: attempt n waits
	// BaseDelay * 2^n. It is also the Retry-After fallback for 429s.
	BaseDelay time.Duration

	// Timeout bounds each individual request.
	Timeout time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

// Client performs resilient HTTP retrieval against the catalog and the
// validation API.
//
// Retries apply to 429 (honoring Retry-After), 5xx, and transport
// errors, with exponential backoff. 404 and other 4xx responses return
// immediately as valid negatives. A Client is safe for concurrent use;
// the orchestrator shares one across all item pipelines.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     *zap.Logger
}

// NewClient creates a Client. A nil logger disables request logging.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     logger,
	}
}

// FetchPage retrieves a text resource (HTML page or API response).
//
// The returned error is non-nil only for unrecoverable local problems
// (bad URL, cancelled context); every HTTP outcome, including exhausted
// retries, is reported through Result.Kind.
func (c *Client) FetchPage(ctx context.Context, url string) (Result, error) {
	var last Result

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		res, retryIn, err := c.attempt(ctx, url)
		if err != nil {
			// Transport error. Retry unless the context is done or
			// attempts are exhausted.
			if ctx.Err() != nil {
				return Result{Kind: KindNetworkFailure}, ctx.Err()
			}
			c.logger.Warn("request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			last = Result{Kind: KindNetworkFailure}
			if attempt < c.opts.MaxRetries {
				if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
					return last, werr
				}
			}
			continue
		}

		switch res.Kind {
		case KindOK, KindNotFound:
			return res, nil
		case KindRateLimited:
			last = res
			if attempt < c.opts.MaxRetries {
				c.logger.Warn("rate limited",
					zap.String("url", url),
					zap.Duration("wait", retryIn))
				if werr := c.wait(ctx, retryIn); werr != nil {
					return last, werr
				}
			}
		case KindServerError:
			last = res
			if attempt < c.opts.MaxRetries {
				c.logger.Warn("server error",
					zap.String("url", url),
					zap.Int("status", res.StatusCode),
					zap.Int("attempt", attempt+1))
				if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
					return last, werr
				}
			}
		}
	}

	return last, nil
}

// attempt performs a single request. retryIn is meaningful only for
// KindRateLimited.
func (c *Client) attempt(ctx context.Context, url string) (res Result, retryIn time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, 0, err
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return Result{}, 0, err
	}
	defer resp.Body.Close()

	// Request-log event: observability only, never affects control flow.
	c.logger.Debug("request",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := readBody(resp)
		if err != nil {
			return Result{}, 0, err
		}
		return Result{Kind: KindOK, Body: string(body), StatusCode: resp.StatusCode}, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{Kind: KindRateLimited, StatusCode: resp.StatusCode}, c.retryAfter(resp), nil

	case resp.StatusCode >= 500:
		return Result{Kind: KindServerError, StatusCode: resp.StatusCode}, 0, nil

	default:
		// 404 and any other 4xx: a valid negative, no retry.
		return Result{Kind: KindNotFound, StatusCode: resp.StatusCode}, 0, nil
	}
}

// readBody drains the response, inflating the body when the server
// answered with gzip the transport did not negotiate. That happens when
// a caller sets Accept-Encoding explicitly, which turns off the
// transport's transparent decompression.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

// retryAfter reads the Retry-After hint, falling back to exponential
// backoff when absent or unparsable. Only the seconds form is
// supported; the catalog does not send HTTP dates.
func (c *Client) retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return c.opts.BaseDelay
}

func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(float64(c.opts.BaseDelay) * math.Pow(2, float64(attempt)))
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// FetchBytes retrieves a binary resource, such as cover art. It uses
// the same retry policy as FetchPage but reports all failures as a
// single error since callers treat thumbnails as best-effort.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range c.opts.Headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.opts.MaxRetries {
				if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}

		c.logger.Debug("request",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))

		if resp.StatusCode == http.StatusOK {
			data, err := readBody(resp)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			return data, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		resp.Body.Close()
		if retryable && attempt < c.opts.MaxRetries {
			if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}
	return nil, ErrDownloadFailed
}

// Head reports whether a URL answers with a non-error status. Used as
// a cheap pre-flight probe before handing a manifest to the downloader.
func (c *Client) Head(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
