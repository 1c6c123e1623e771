package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
	"github.com/couchcryptid/coastal-erosion-etl/internal/observability"
)

// ErrSessionClosed is returned by requests made after Close.
var ErrSessionClosed = errors.New("stac session closed")

// SessionConfig configures a catalog session.
type SessionConfig struct {
	URL   string
	Token string
	// Timeout bounds each HTTP request, asset downloads included.
	Timeout time.Duration
}

// Session is an authenticated connection to a STAC API. It is safe for
// concurrent use.
type Session struct {
	base       *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	closed     atomic.Bool
}

// Open creates a session and checks that the catalog landing page answers.
// An unreachable catalog is reported as domain.ErrSourceUnavailable.
func Open(ctx context.Context, cfg SessionConfig, logger *slog.Logger, metrics *observability.Metrics) (*Session, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	s := &Session{
		base:       base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    metrics,
	}

	resp, err := s.do(ctx, http.MethodGet, base.String(), nil, "landing")
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", base, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	logger.Info("stac session opened", "url", base.String())
	return s, nil
}

// Close releases idle connections. Later requests fail with ErrSessionClosed.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.httpClient.CloseIdleConnections()
}

// resolve turns a possibly relative link into an absolute URL.
func (s *Session) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	return s.base.ResolveReference(u).String(), nil
}

// sendJSON sends body as JSON, when set, and decodes the response into out.
func (s *Session) sendJSON(ctx context.Context, method, target string, body any, endpoint string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
	}

	resp, err := s.do(ctx, method, target, payload, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// fetch downloads a URL into memory.
func (s *Session) fetch(ctx context.Context, target, endpoint string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, target, nil, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.transportError(ctx, endpoint, err)
	}
	return data, nil
}

// do sends a request and returns the response when the status is 2xx.
// Transport failures, 429, and 5xx responses wrap domain.ErrSourceUnavailable;
// the caller closes the body.
func (s *Session) do(ctx context.Context, method, target string, payload []byte, endpoint string) (*http.Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Asset hrefs often point at object storage on other hosts.
	if s.token != "" && strings.EqualFold(req.URL.Host, s.base.Host) {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	s.metrics.STACDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.STACRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, s.transportError(ctx, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.STACRequests.WithLabelValues(endpoint, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		err := fmt.Errorf("stac %s %s: status %d: %s", endpoint, method, resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return nil, err
	}

	s.metrics.STACRequests.WithLabelValues(endpoint, "success").Inc()
	return resp, nil
}

func (s *Session) transportError(ctx context.Context, endpoint string, err error) error {
	s.logger.Debug("stac request failed", "endpoint", endpoint, "error", err, "ctx_err", ctx.Err())
	return fmt.Errorf("%w: %s request: %w", domain.ErrSourceUnavailable, endpoint, err)
}
