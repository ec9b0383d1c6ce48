// Package fetch streams the bytes behind a URL to a writer, retrying
// transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
)

// ChunkSize is the read size used while streaming a response body.
const ChunkSize = 32 * 1024

// ErrInvalidSource is returned for URLs that cannot be requested at all.
var ErrInvalidSource = errors.New("invalid source URL")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Options configures an HTTP fetcher.
type Options struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Logger    *logging.Logger

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	// Zero keeps the library defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// HTTP fetches over HTTP(S).
type HTTP struct {
	client    *retryablehttp.Client
	userAgent string
}

// New returns an HTTP fetcher.
func New(opts Options) *HTTP {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.Retries
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Get("fetch")
	}
	c.Logger = leveled{logger}

	// Hand 4xx/5xx responses back to Fetch once retries are exhausted so the
	// caller sees the status instead of a generic "giving up" error.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTP{client: c, userAgent: opts.UserAgent}
}

// Fetch streams url into w. progress, when non-nil, is called after every
// chunk with the bytes written so far and the Content-Length (-1 when the
// server does not send one). The request is abandoned when ctx is done.
func (h *HTTP) Fetch(ctx context.Context, rawURL string, w io.Writer, progress func(received, total int64)) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSource, rawURL)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return Copy(ctx, w, resp.Body, resp.ContentLength, progress)
}

// Copy streams src into dst in ChunkSize pieces, reporting progress and
// stopping with ctx's error as soon as ctx is done.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress func(received, total int64)) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := dst.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, &WriteError{Err: werr}
			}
			if m != n {
				return written, &WriteError{Err: io.ErrShortWrite}
			}
			if progress != nil {
				progress(written, total)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}
			return written, rerr
		}
	}
}

// WriteError marks a failure on the destination side of a Copy, as opposed
// to a network failure.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "write: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// leveled adapts a logging.Logger to retryablehttp.LeveledLogger.
type leveled struct {
	l *logging.Logger
}

func (a leveled) Error(msg string, kv ...interface{}) { a.l.Error(msg, kv...) }
func (a leveled) Info(msg string, kv ...interface{})  { a.l.Debug(msg, kv...) }
func (a leveled) Debug(msg string, kv ...interface{}) { a.l.Debug(msg, kv...) }
func (a leveled) Warn(msg string, kv ...interface{})  { a.l.Warn(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveled{}
