// Package mock provides an offline catalog and a simulated transfer. It is
// selected with source.type=mock and is what the tests and demos run against.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

const (
	defaultSteps     = 20
	defaultStepDelay = 100 * time.Millisecond

	// FailPrefix makes a download URL fail halfway through
	FailPrefix = "mock://fail/"
)

// Client serves Fixtures and simulates downloads
type Client struct {
	fixtures  Fixtures
	dir       string
	steps     int
	stepDelay time.Duration
	logger    *slog.Logger
}

var _ domain.Source = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithStepDelay sets the pause between simulated progress steps
func WithStepDelay(d time.Duration) Option {
	return func(c *Client) { c.stepDelay = d }
}

// NewClient creates a mock source writing placeholder files into dir
func NewClient(fixtures Fixtures, dir string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		fixtures:  fixtures,
		dir:       dir,
		steps:     defaultSteps,
		stepDelay: defaultStepDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.Server(nil), c.fixtures.Servers...), nil
}

func (c *Client) ListImages(ctx context.Context, server domain.Server) ([]domain.ImageEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, s := range c.fixtures.Servers {
		if s.ID == server.ID {
			return c.fixtures.imagesFor(server.ID), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrServerNotFound, server.ID)
}

// Download reports progress in fixed steps and then writes an empty
// placeholder file named after the entry.
func (c *Client) Download(ctx context.Context, entry domain.ImageEntry, progress domain.ProgressFunc) (domain.DownloadResult, error) {
	target := filepath.Join(c.dir, entry.Filename)
	if _, err := os.Stat(target); err == nil {
		return domain.DownloadResult{}, &domain.TransferError{
			Filename: entry.Filename, Reason: "file already exists: " + target, Err: domain.ErrFileExists,
		}
	}

	total := entry.Size
	if total <= 0 {
		total = int64(c.steps)
	}
	fail := strings.HasPrefix(entry.DownloadURL, FailPrefix)

	c.logger.Debug("simulating transfer", "filename", entry.Filename, "steps", c.steps)

	ticker := time.NewTicker(max(c.stepDelay, time.Microsecond))
	defer ticker.Stop()
	for step := 1; step <= c.steps; step++ {
		select {
		case <-ctx.Done():
			return domain.DownloadResult{}, ctx.Err()
		case <-ticker.C:
		}
		if fail && step > c.steps/2 {
			return domain.DownloadResult{}, errors.New("simulated network failure")
		}
		if progress != nil {
			progress(total*int64(step)/int64(c.steps), total)
		}
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return domain.DownloadResult{}, fmt.Errorf("cannot create download directory: %w", err)
	}
	if err := os.WriteFile(target, nil, 0644); err != nil {
		return domain.DownloadResult{}, fmt.Errorf("failed to write placeholder: %w", err)
	}
	return domain.DownloadResult{Path: target, Bytes: total}, nil
}
