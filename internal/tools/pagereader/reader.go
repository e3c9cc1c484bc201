// Package pagereader fetches a web page and extracts its readable text so a
// worker can follow up on a search result.
package pagereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

// ToolName is the name workers use to call the page reader.
const ToolName = "read_page"

// maxBody caps how much HTML is read from one page.
const maxBody = 4 << 20

// FetchError reports a page that could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Doer is the subset of *http.Client the reader needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reader extracts the main article text of a page.
type Reader struct {
	cfg    config.PageReaderConfig
	http   Doer
	render Renderer
	logger *zap.Logger
}

// Option configures the reader.
type Option func(*Reader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(r *Reader) {
		if d != nil {
			r.http = d
		}
	}
}

// WithRenderer fetches pages through a browser instead of plain HTTP.
func WithRenderer(rd Renderer) Option {
	return func(r *Reader) { r.render = rd }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a page reader. cfg is normalised first.
func New(cfg config.PageReaderConfig, opts ...Option) *Reader {
	r := &Reader{cfg: cfg.Normalize(), http: &http.Client{}, logger: zap.NewNop()}
	if r.cfg.Render {
		r.render = NewBrowser(r.cfg.UserAgent)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Name() string { return ToolName }

func (r *Reader) Description() string {
	return "Read a web page. Input is an absolute http(s) URL, typically taken from search results; output is the page's main text."
}

// Invoke fetches link and returns its readable text, truncated to
// tools.page_reader.max_chars.
func (r *Reader) Invoke(ctx context.Context, link string) (core.Context, error) {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.Context{}, fmt.Errorf("invalid url %q", link)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	t0 := time.Now()
	body, err := r.fetch(ctx, u)
	if err != nil {
		return core.Context{}, err
	}
	defer body.Close()

	article, err := readability.FromReader(io.LimitReader(body, maxBody), u)
	if err != nil {
		return core.Context{}, fmt.Errorf("extract %s: %w", link, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return core.Context{}, &FetchError{URL: link, Err: errors.New("no readable content")}
	}
	if runes := []rune(text); len(runes) > r.cfg.MaxChars {
		text = string(runes[:r.cfg.MaxChars])
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = link
	}
	r.logger.Debug("page read", zap.String("url", link), zap.Int("chars", len(text)), zap.Duration("duration", time.Since(t0)))
	return core.Context{Label: "Page: " + title, Body: text}, nil
}

// fetch returns the raw HTML of u, rendered when a Renderer is set.
func (r *Reader) fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	link := u.String()
	if r.render != nil {
		html, err := r.render.Render(ctx, link)
		if err != nil {
			return nil, &FetchError{URL: link, Err: err}
		}
		return io.NopCloser(strings.NewReader(html)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &FetchError{URL: link, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
