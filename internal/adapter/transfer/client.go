// Package transfer streams image files over HTTP into the download
// directory. Data lands in a ".part" file that is renamed once complete, and
// an existing target is never overwritten.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

const (
	userAgent     = "vhdget/1.0"
	partSuffix    = ".part"
	bufferSize    = 256 * 1024
	dialTimeout   = 30 * time.Second
	headerTimeout = 60 * time.Second
)

// statusError is a non-200 response
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.code, http.StatusText(e.code))
}

// Client implements domain.TransferClient over HTTP
type Client struct {
	dir        string
	httpClient *http.Client
	policy     Policy
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

var _ domain.TransferClient = (*Client)(nil)

// NewClient creates a transfer client writing into dir
func NewClient(dir string, policy Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	transport.TLSHandshakeTimeout = dialTimeout

	return &Client{
		dir: dir,
		// No overall timeout: image files are several GB.
		httpClient: &http.Client{Transport: transport},
		policy:     policy,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Dir returns the download directory
func (c *Client) Dir() string {
	return c.dir
}

// Download fetches entry into the download directory, retrying transient
// failures according to the policy. Failures are returned as
// *domain.TransferError.
func (c *Client) Download(ctx context.Context, entry domain.ImageEntry, progress domain.ProgressFunc) (domain.DownloadResult, error) {
	fail := func(reason string, err error) (domain.DownloadResult, error) {
		return domain.DownloadResult{}, &domain.TransferError{Filename: entry.Filename, Reason: reason, Err: err}
	}

	if err := validateFilename(entry.Filename); err != nil {
		return fail(err.Error(), err)
	}
	if entry.DownloadURL == "" {
		return fail("missing download url", errors.New("missing download url"))
	}

	target := filepath.Join(c.dir, entry.Filename)
	if _, err := os.Stat(target); err == nil {
		return fail("file already exists: "+target, domain.ErrFileExists)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fail("cannot create download directory", err)
	}

	part := target + partSuffix
	var (
		written int64
		err     error
	)
	for attempt := 0; ; attempt++ {
		written, err = c.fetch(ctx, entry, part, progress)
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if !retryable(ctx, err) || attempt >= c.policy.MaxRetries {
			os.Remove(part)
			c.logger.Error("transfer failed", "error", err, "filename", entry.Filename, "attempts", attempt+1)
			return fail(err.Error(), err)
		}

		delay := c.policy.Delay(attempt + 1)
		c.logger.Warn("transfer attempt failed, retrying",
			"error", err, "filename", entry.Filename, "attempt", attempt+1, "delay", delay)
		if serr := c.sleep(ctx, delay); serr != nil {
			os.Remove(part)
			return fail(serr.Error(), serr)
		}
	}

	// Another process may have finished the same file meanwhile.
	if _, err := os.Stat(target); err == nil {
		os.Remove(part)
		return fail("file already exists: "+target, domain.ErrFileExists)
	}
	if err := os.Rename(part, target); err != nil {
		os.Remove(part)
		return fail("cannot finalize download", err)
	}

	c.logger.Info("transfer complete", "filename", entry.Filename, "size", humanize.Bytes(uint64(written)), "path", target)
	return domain.DownloadResult{Path: target, Bytes: written}, nil
}

// fetch performs one GET and streams the body into part, truncating it first
func (c *Client) fetch(ctx context.Context, entry domain.ImageEntry, part string, progress domain.ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.DownloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("transfer request", "url", entry.DownloadURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &statusError{code: resp.StatusCode}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = entry.Size
	}
	if total > 0 {
		c.logger.Debug("transfer size", "filename", entry.Filename, "size", humanize.Bytes(uint64(total)))
	}

	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	pw := &progressWriter{w: f, total: total, report: progress}
	n, copyErr := io.CopyBuffer(pw, resp.Body, make([]byte, bufferSize))
	closeErr := f.Close()
	if copyErr != nil {
		return n, copyErr
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to write file: %w", closeErr)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("short transfer: got %d of %d bytes: %w", n, resp.ContentLength, io.ErrUnexpectedEOF)
	}
	return n, nil
}

// retryable reports whether another attempt may succeed
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusRequestTimeout, se.code == http.StatusTooManyRequests:
			return true
		case se.code >= 400 && se.code < 500:
			return false
		}
	}
	return true
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || filepath.IsAbs(name) {
		return fmt.Errorf("invalid filename %q", name)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// progressWriter counts bytes written and reports them
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	report  domain.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.report != nil {
		p.report(p.written, p.total)
	}
	return n, err
}
