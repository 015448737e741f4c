package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/armastats/relay/agent/internal/config"
)

// maxResponseBody caps how much of a response body is read into memory.
const maxResponseBody = 1 << 20

// SnippetSize is how much of an error body callers put in a log line.
const SnippetSize = 256

// ErrStaleConnection marks failures caused by a reused connection that the
// server had already closed. Such requests never reached the application.
var ErrStaleConnection = errors.New("transport: stale connection")

// Response is the part of an HTTP response the relay cares about.
type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d", e.StatusCode)
}

// Snippet returns at most n bytes of the response body for logging, with
// "..." appended when it was cut.
func (e *StatusError) Snippet(n int) string {
	if len(e.Body) <= n {
		return string(e.Body)
	}
	return string(e.Body[:n]) + "..."
}

// IsStale reports whether err was classified as a stale-connection failure.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleConnection)
}

// Client posts JSON bodies to the backend.
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client for the relay's auth, TLS and timeout settings.
func New(cfg config.RelayConfig) (*Client, error) {
	hc, err := buildHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: build http client: %w", err)
	}
	return NewWithHTTPClient(hc, cfg.UserAgent), nil
}

// NewWithHTTPClient wraps an existing http.Client, e.g. an httptest server's.
func NewWithHTTPClient(hc *http.Client, userAgent string) *Client {
	return &Client{http: hc, userAgent: userAgent}
}

// Post sends body to url and returns the response of a 2xx answer.
func (c *Client) Post(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, classify(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// classify wraps connection-reuse failures with ErrStaleConnection and
// returns every other error unchanged.
func classify(err error) error {
	if isStaleErr(err) {
		return fmt.Errorf("%w: %w", ErrStaleConnection, err)
	}
	return fmt.Errorf("transport: %w", err)
}

func isStaleErr(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return strings.Contains(err.Error(), "server closed idle connection")
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the relay's auth and TLS settings.
func buildHTTPClient(cfg config.RelayConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cfg.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(cfg.Auth.CertFile, cfg.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if cfg.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(cfg.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg

	return &http.Client{
		Transport: &authRoundTripper{base: base, auth: cfg.Auth},
		Timeout:   cfg.RequestTimeout,
	}, nil
}
