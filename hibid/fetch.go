package hibid

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fliptrack/fliptrack/config"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// Validators carries the conditional-request validators for one URL.
type Validators struct {
	ETag         string
	LastModified string
}

// FetchResult is the outcome of one resolved fetch. A 304 response is a
// valid result, not an error; callers check NotModified before touching
// the body.
type FetchResult struct {
	Body         string
	StatusCode   int
	ETag         string
	LastModified string
}

// NotModified reports whether the remote short-circuited on validators.
func (fr *FetchResult) NotModified() bool {
	return fr.StatusCode == http.StatusNotModified
}

// Client issues polite GETs against the auction site: browser-like
// headers, conditional requests, and Retry-After-aware backoff on
// transient statuses.
type Client struct {
	http    *resty.Client
	cfg     *config.Config
	metrics *Metrics

	// validators caches ETag/Last-Modified per URL when enabled, so
	// watchlist re-scrapes can short-circuit on 304.
	validators *lru.Cache[string, Validators]

	sleep func(time.Duration)
}

// NewClient builds a fetch client from cfg. metrics may be nil.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	rc := resty.New().
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", acceptHeader).
		SetHeader("Accept-Language", cfg.AcceptLanguage).
		SetRetryCount(0)

	c := &Client{
		http:    rc,
		cfg:     cfg,
		metrics: metrics,
		sleep:   time.Sleep,
	}

	if cfg.ValidatorCacheSize > 0 {
		cache, err := lru.New[string, Validators](cfg.ValidatorCacheSize)
		if err != nil {
			return nil, err
		}
		c.validators = cache
	}
	return c, nil
}

// SetTransport swaps the underlying HTTP transport; used by tests.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// PoliteGet fetches url with retry/backoff. Transient statuses (429 and
// the retryable 5xx set) are retried up to MaxRetries, waiting the
// Retry-After header when present and parseable, else an exponential
// backoff capped at BackoffMax. Any other status >= 400 fails
// immediately. cond supplies conditional-request validators; when nil,
// the client falls back to its validator cache, if enabled.
func (c *Client) PoliteGet(ctx context.Context, url string, cond *Validators, timeout time.Duration, phase string) (*FetchResult, error) {
	if cond == nil && c.validators != nil {
		if cached, ok := c.validators.Get(url); ok {
			cond = &cached
		}
	}

	attempt := 0
	for {
		res, err := c.get(ctx, url, cond, timeout, phase)
		if err != nil {
			return nil, err
		}

		status := res.StatusCode()
		if status == http.StatusNotModified {
			return notModifiedResult(res, cond), nil
		}

		if isTransientStatus(status) {
			if attempt >= c.cfg.MaxRetries {
				c.metrics.IncError(errorTypeLabel(&FetchError{URL: url, StatusCode: status}))
				return nil, &FetchError{URL: url, StatusCode: status}
			}
			wait := retryAfter(res)
			if wait < 0 {
				wait = c.backoff(attempt)
			}
			slog.Debug("transient status, backing off",
				slog.String("url", url),
				slog.Int("status", status),
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt),
			)
			c.metrics.IncRetries()
			c.sleep(wait)
			attempt++
			continue
		}

		if status >= http.StatusBadRequest {
			c.metrics.IncError(errorTypeLabel(&FetchError{URL: url, StatusCode: status}))
			return nil, &FetchError{URL: url, StatusCode: status}
		}

		fr := &FetchResult{
			Body:         res.String(),
			StatusCode:   status,
			ETag:         res.Header().Get("ETag"),
			LastModified: res.Header().Get("Last-Modified"),
		}
		if c.validators != nil && (fr.ETag != "" || fr.LastModified != "") {
			c.validators.Add(url, Validators{ETag: fr.ETag, LastModified: fr.LastModified})
		}
		return fr, nil
	}
}

// Get issues a single GET with no retries. Statuses >= 400 are returned
// as results rather than errors; the paginator treats them as the end of
// the catalog.
func (c *Client) Get(ctx context.Context, url string, timeout time.Duration, phase string) (*FetchResult, error) {
	res, err := c.get(ctx, url, nil, timeout, phase)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		Body:         res.String(),
		StatusCode:   res.StatusCode(),
		ETag:         res.Header().Get("ETag"),
		LastModified: res.Header().Get("Last-Modified"),
	}, nil
}

func (c *Client) get(ctx context.Context, url string, cond *Validators, timeout time.Duration, phase string) (*resty.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := c.http.R().SetContext(ctx)
	if cond != nil {
		if cond.ETag != "" {
			req.SetHeader("If-None-Match", cond.ETag)
		}
		if cond.LastModified != "" {
			req.SetHeader("If-Modified-Since", cond.LastModified)
		}
	}

	c.metrics.IncRequest(phase)
	start := time.Now()
	res, err := req.Get(url)
	c.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		classified := classifyError(err)
		c.metrics.IncError(errorTypeLabel(classified))
		return nil, classified
	}
	return res, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(math.Pow(c.cfg.BackoffFactor, float64(attempt)) * float64(time.Second))
	if d > c.cfg.BackoffMax {
		d = c.cfg.BackoffMax
	}
	return d
}

// retryAfter returns the Retry-After delay, or a negative duration when
// the header is absent or unparseable as a non-negative number.
func retryAfter(res *resty.Response) time.Duration {
	raw := strings.TrimSpace(res.Header().Get("Retry-After"))
	if raw == "" {
		return -1
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return -1
	}
	return time.Duration(secs * float64(time.Second))
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func notModifiedResult(res *resty.Response, cond *Validators) *FetchResult {
	fr := &FetchResult{StatusCode: http.StatusNotModified}
	fr.ETag = res.Header().Get("ETag")
	fr.LastModified = res.Header().Get("Last-Modified")
	if cond != nil {
		if fr.ETag == "" {
			fr.ETag = cond.ETag
		}
		if fr.LastModified == "" {
			fr.LastModified = cond.LastModified
		}
	}
	return fr
}
