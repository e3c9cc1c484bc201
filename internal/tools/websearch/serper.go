// Package websearch implements the internet search tool used by the
// research stage, backed by the serper.dev Google search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

// ToolName is the name workers use to call the search tool.
const ToolName = "search_internet"

// DefaultEndpoint is the serper.dev search URL.
const DefaultEndpoint = "https://google.serper.dev/search"

// ConfigurationError reports a tool that cannot run with the current
// configuration. No request is made.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "search not configured: " + e.Reason
}

// ToolInvocationError reports a search request that did not succeed.
// StatusCode is zero for transport failures.
type ToolInvocationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ToolInvocationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("search request failed: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("search request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("search request failed with status %d", e.StatusCode)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ToolInvocationError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Doer is the subset of *http.Client the tool needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Serper searches the web through serper.dev.
type Serper struct {
	cfg        config.SearchConfig
	http       Doer
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	onRetry    func(attempt int, err error)
	logger     *zap.Logger
}

// Option configures the search tool.
type Option func(*Serper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(s *Serper) {
		if d != nil {
			s.http = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Serper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackOff sets the retry schedule factory. Retries are still capped by
// search.max_retries.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Serper) {
		if f != nil {
			s.newBackOff = f
		}
	}
}

// WithRetryHook is called before every retry.
func WithRetryHook(fn func(attempt int, err error)) Option {
	return func(s *Serper) { s.onRetry = fn }
}

// New creates the search tool. cfg is normalised first.
func New(cfg config.SearchConfig, opts ...Option) *Serper {
	cfg = cfg.Normalize()
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	s := &Serper{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Serper) Name() string { return ToolName }

func (s *Serper) Description() string {
	return "Search the internet for current information. Input is a search query; output lists result titles with links."
}

// Invoke runs a search and folds the organic results into a context record.
func (s *Serper) Invoke(ctx context.Context, query string) (core.Context, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return core.Context{}, err
	}
	return core.Context{
		Label: "Search results for: " + query,
		Body:  FormatResults(results),
	}, nil
}

// FormatResults renders one "- title: link" line per result.
func FormatResults(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, r.Link))
	}
	return strings.Join(lines, "\n")
}

// Search returns the organic results for query. Transport failures, 429 and
// 5xx responses are retried up to search.max_retries times.
func (s *Serper) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(s.cfg.SerperAPIKey) == "" {
		return nil, &ConfigurationError{Reason: "serper API key is empty"}
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is empty")
	}
	payload, err := json.Marshal(map[string]any{"q": query, "num": s.cfg.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var results []Result
	attempt := 0
	op := func() error {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := s.do(ctx, payload)
		if err != nil {
			var tie *ToolInvocationError
			if errors.As(err, &tie) && tie.Retryable() && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		results = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("search retry", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		if s.onRetry != nil {
			s.onRetry(attempt, err)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.cfg.MaxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	s.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)), zap.Int("attempts", attempt))
	return results, nil
}

func (s *Serper) do(ctx context.Context, payload []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.cfg.SerperAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &ToolInvocationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ToolInvocationError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var out struct {
		Organic []Result `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ToolInvocationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return out.Organic, nil
}
