// Package fetch resolves job-posting URLs to plain text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Defaults applied by NewResolver for zero Options fields.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxChars  = 2000
	DefaultUserAgent = "assessd/1.0"

	maxBodyBytes = 5 << 20
)

// ErrFetch is matched by every *Error.
var ErrFetch = errors.New("fetch failed")

// Error describes a failed URL resolution.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool { return target == ErrFetch }

// Options configures a Resolver.
type Options struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	Client    *http.Client
}

// Resolver fetches a page and extracts its visible text.
type Resolver struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

// NewResolver creates a Resolver. logger may be nil.
func NewResolver(opts Options, logger *zap.Logger) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Resolver{opts: opts, client: client, logger: logger}
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

// Resolve fetches rawURL and returns its text with scripts and styles
// removed, whitespace collapsed, truncated to MaxChars runes.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsURL(rawURL) {
		return "", &Error{URL: rawURL, Message: "invalid URL"}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxBodyBytes), r.opts.MaxChars)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "failed to parse HTML", Cause: err}
	}
	if text == "" {
		return "", &Error{URL: rawURL, Message: "page has no text"}
	}

	r.logger.Debug("resolved url", zap.String("url", rawURL), zap.Int("chars", len([]rune(text))))
	return text, nil
}

// ExtractText parses HTML and returns its visible text. maxChars <= 0
// disables truncation.
func ExtractText(r io.Reader, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if maxChars > 0 {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text, nil
}
