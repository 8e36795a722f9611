// Package fetch talks to the servers hosting rips: header probes to learn the
// content type and streaming downloads into a check's workspace.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/id"
	"github.com/ripqoc/qoc-server/internal/ratelimit"
)

const (
	chunkSize = 32 * 1024

	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
	defaultHostRPS      = 2.0
	defaultHostBurst    = 4
	defaultUserAgent    = "qoc-server/1.0"
)

var errTooManyRedirects = errors.New("too many redirects")

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// RequestTimeout bounds the wait for response headers. Body transfer is
	// bounded only by the caller's context.
	RequestTimeout time.Duration
	MaxRedirects   int
	HostRPS        float64
	HostBurst      int
	UserAgent      string
}

// Client performs HEAD probes and downloads, throttled per remote host.
type Client struct {
	http      *http.Client
	limiter   *ratelimit.KeyedRateLimiter
	userAgent string
	logger    *slog.Logger
}

// Download describes a file written by Client.Download.
type Download struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
	FinalURL    string
}

// New creates a client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.HostRPS <= 0 {
		opts.HostRPS = defaultHostRPS
	}
	if opts.HostBurst <= 0 {
		opts.HostBurst = defaultHostBurst
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.RequestTimeout
	transport.TLSHandshakeTimeout = opts.RequestTimeout

	maxRedirects := opts.MaxRedirects
	return &Client{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		limiter:   ratelimit.New(opts.HostRPS, opts.HostBurst),
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Head returns the lower-cased Content-Type of rawURL without fetching the body.
func (c *Client) Head(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	c.logger.Debug("head", "url", rawURL, "status", resp.StatusCode, "content_type", ct)
	return ct, nil
}

// Download streams rawURL into dir, creating dir if needed. The file is named
// "<token>-<server filename>" so concurrent checks never share a path.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	name, err := responseFilename(resp)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domainerrors.Internalf("cannot create download directory").WithCause(err)
	}

	token, err := id.FileToken()
	if err != nil {
		return nil, domainerrors.Internalf("cannot name download").WithCause(err)
	}
	path := filepath.Join(dir, token+"-"+sanitizeFilename(name))

	size, err := writeChunks(path, resp.Body)
	if err != nil {
		_ = os.Remove(path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, classify(ctxErr)
		}
		return nil, classify(err)
	}

	c.logger.Debug("downloaded",
		"url", rawURL,
		"path", path,
		"bytes", size,
		"content_type", contentType,
	)

	return &Download{
		Path:        path,
		Filename:    name,
		ContentType: strings.ToLower(contentType),
		Size:        size,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		detail := "missing host"
		if err != nil {
			detail = err.Error()
		}
		return nil, domainerrors.Network("Unknown URL error. " + detail)
	}

	if err := c.limiter.Wait(ctx, u.Hostname()); err != nil {
		return nil, classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, domainerrors.Network("Unknown URL error. " + err.Error())
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func writeChunks(path string, body io.Reader) (int64, error) {
	f, err := os.Create(path) //#nosec G304 -- path is built from a sanitized name inside the workspace
	if err != nil {
		return 0, err
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				_ = f.Close()
				return written, err
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return written, readErr
		}
	}

	return written, f.Close()
}

// classify maps transport failures onto the user-facing network messages.
func classify(err error) error {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domainerrors.Network("Request timed out.").WithCause(err)
	case errors.Is(err, errTooManyRedirects):
		return domainerrors.Network("Bad URL.").WithCause(err)
	default:
		return domainerrors.Network(fmt.Sprintf("Unknown URL error. %s", detail(err))).WithCause(err)
	}
}

func detail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
