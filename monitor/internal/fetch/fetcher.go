// CLAUDE:SUMMARY HTTP GET/HEAD client with per-call timeouts, SSRF validation, size cap and optional file:// reads.
// Package fetch performs the outbound requests of a monitoring run.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hazyhaar/diario/horosafe"
)

// Response is the outcome of a successful request.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte // nil for HEAD
}

// StatusError reports a non-2xx HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
}

// Config configures the fetcher.
type Config struct {
	MaxBytes  int64  // Max response body size. Default: 64MB.
	UserAgent string // Default: "diario/1.0".
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: horosafe.ValidateURL.
	URLValidator func(string) error
	// AllowFile enables file:// URLs, read from the local filesystem.
	AllowFile bool
}

func (c *Config) defaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 64 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "diario/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
}

// Fetcher performs HTTP requests.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get retrieves rawURL, bounded by timeout when positive.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if path, ok := f.filePath(rawURL); ok {
		return f.readFile(rawURL, path)
	}
	return f.do(ctx, http.MethodGet, rawURL, timeout)
}

// Head issues a HEAD request for rawURL. file:// URLs report the file's
// modification time as Last-Modified.
func (f *Fetcher) Head(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if path, ok := f.filePath(rawURL); ok {
		st, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		h := http.Header{}
		h.Set("Last-Modified", st.ModTime().UTC().Format(http.TimeFormat))
		return &Response{URL: rawURL, StatusCode: http.StatusOK, Header: h}, nil
	}
	return f.do(ctx, http.MethodHead, rawURL, timeout)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, timeout time.Duration) (*Response, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	out := &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if method == http.MethodHead {
		return out, nil
	}
	out.Body, err = horosafe.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return out, nil
}

func (f *Fetcher) filePath(rawURL string) (string, bool) {
	if !f.config.AllowFile {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return u.Path, true
}

func (f *Fetcher) readFile(rawURL, path string) (*Response, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	body, err := horosafe.LimitedReadAll(fh, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Response{URL: rawURL, StatusCode: http.StatusOK, Header: http.Header{}, Body: body}, nil
}
