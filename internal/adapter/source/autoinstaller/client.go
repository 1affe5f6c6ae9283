// Package autoinstaller implements the catalog client for the autoinstaller
// HTTP API. Servers and their images come from a single listing endpoint.
package autoinstaller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "vhdget/1.0"
	clientID       = "vhdget-cli"

	serverListPath = "/iso-download/"
)

// Client implements domain.CatalogClient against the autoinstaller API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.CatalogClient = (*Client)(nil)

// NewClient creates a new autoinstaller API client. A zero timeout uses 30s.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request and returns the body of a 200 response
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Client-ID", clientID)

	c.logger.Debug("catalog request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("catalog request failed", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("catalog request error", "status", resp.StatusCode, "body", truncate(string(body), 256))
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	}

	return body, nil
}

// fetchServers returns the raw server listing
func (c *Client) fetchServers(ctx context.Context) ([]ServerInfo, error) {
	body, err := c.doRequest(ctx, http.MethodGet, serverListPath)
	if err != nil {
		return nil, err
	}

	var resp ServerListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "server reported failure"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogUnavailable, msg)
	}
	return resp.Data.Servers, nil
}

// ListServers returns all download servers
func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	infos, err := c.fetchServers(ctx)
	if err != nil {
		return nil, err
	}
	servers := MapServers(infos, c.baseURL)
	c.logger.Debug("listed servers", "count", len(servers))
	return servers, nil
}

// ListImages returns the images offered by server. The listing is fetched
// again so the links are current.
func (c *Client) ListImages(ctx context.Context, server domain.Server) ([]domain.ImageEntry, error) {
	infos, err := c.fetchServers(ctx)
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if info.ID == server.ID {
			entries := MapImages(info.DownloadURLs)
			c.logger.Debug("listed images", "serverID", server.ID, "count", len(entries))
			return entries, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrServerNotFound, server.ID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
