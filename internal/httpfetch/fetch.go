// Package httpfetch downloads remote images with size and time limits.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"coloringbook/internal/infra"
)

// ErrTooLarge is returned when the body exceeds the configured limit.
var ErrTooLarge = errors.New("httpfetch: response body too large")

// Result is a downloaded body.
type Result struct {
	Data        []byte
	ContentType string
}

// Fetcher is the contract job runners use to read source images.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Options controls Client behavior.
type Options struct {
	Timeout    time.Duration
	MaxBytes   int64
	HTTPClient *http.Client
	UserAgent  string
}

// Client is an http.Client backed Fetcher.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	userAgent  string
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "coloringbook-fetcher/1.0"
	}
	return &Client{httpClient: client, timeout: timeout, maxBytes: maxBytes, userAgent: ua}
}

// Fetch downloads rawURL, which must be http or https.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("httpfetch: unsupported url %q", rawURL)
	}

	ctx, span := otel.Tracer("coloringbook/httpfetch").Start(ctx, "httpfetch.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("http.host", parsed.Host))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		infra.CaptureException(span, err)
		return nil, fmt.Errorf("httpfetch: download: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("httpfetch: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		infra.CaptureException(span, err)
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		infra.CaptureException(span, ErrTooLarge)
		return nil, ErrTooLarge
	}
	return &Result{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

var _ Fetcher = (*Client)(nil)
