package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"memorypal/keeper/internal/capture"
)

const (
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "memorypal-keeper/1.0"
	DefaultMaxBytes  = 5 << 20
)

// Client fetches pages over HTTP.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	c := &http.Client{Timeout: opts.Timeout}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 6 {
			return fmt.Errorf("too many redirects")
		}
		if !capture.IsCapturable(req.URL.String()) {
			return fmt.Errorf("redirect blocked: %s", req.URL.String())
		}
		return nil
	}
	return &Client{http: c, userAgent: opts.UserAgent, maxBytes: opts.MaxBytes}
}

// Fetch downloads url and extracts its content. Plain-text responses are
// returned as text with no title. It satisfies capture.Fetcher.
func (c *Client) Fetch(ctx context.Context, url string) (capture.Capture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(url), nil)
	if err != nil {
		return capture.Capture{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		return capture.Capture{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return capture.Capture{}, fmt.Errorf("fetching %s: http %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return capture.Capture{}, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return capture.Capture{}, fmt.Errorf("response too large (%d > %d)", len(body), c.maxBytes)
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}
	if mediaType == "" && len(body) > 0 {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return Extract(bytes.NewReader(body))
	case "text/plain":
		return capture.Capture{Text: strings.Join(strings.Fields(string(body)), " ")}, nil
	default:
		return capture.Capture{}, fmt.Errorf("unsupported content type %q", mediaType)
	}
}
