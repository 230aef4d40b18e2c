package fetch

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/scholarscope/harvest-cli/internal/resilience"
)

// Fetcher retrieves and parses a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Config tunes the HTTP fetcher.
type Config struct {
	Timeout          time.Duration
	UserAgent        string
	MaxBodyBytes     int64
	FailureThreshold int
}

// HTTPFetcher fetches pages over plain HTTP with retry on transient errors
// and a circuit breaker that stops hammering a host that keeps failing.
type HTTPFetcher struct {
	client  *http.Client
	ua      string
	maxBody int64
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewHTTP creates an HTTPFetcher.
func NewHTTP(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.FailureThreshold
	}
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("fetch circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("fetch", "get")

	return &HTTPFetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		ua:      cfg.UserAgent,
		maxBody: cfg.MaxBodyBytes,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		retry:   retryCfg,
	}
}

// Fetch retrieves url and parses the body into a Page.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	return resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (Page, error) {
		return resilience.DoVal(ctx, f.retry, func(ctx context.Context) (Page, error) {
			return f.get(ctx, url)
		})
	})
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: build request %s", url)
	}
	if f.ua != "" {
		req.Header.Set("User-Agent", f.ua)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: get %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetch: get %s: status %d", url, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	reader, err := decodeCharset(io.LimitReader(resp.Body, f.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: decode body %s", url)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read body %s", url)
	}

	page, err := Parse(url, string(body))
	if err != nil {
		return nil, err
	}

	zap.L().Debug("page fetched",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
	)
	return page, nil
}

// decodeCharset converts the body to UTF-8 when the Content-Type header
// declares another charset. Many listing sites still serve windows-1252.
func decodeCharset(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
