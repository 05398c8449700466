// Package lookup resolves a registration number to a remote document
// locator via the PPLS ORDS lookup service.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ppls/internal/config"
	"ppls/internal/ratelimit"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

func NewClient(cfg config.Config, limiter *ratelimit.Limiter) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond},
		limiter:    limiter,
	}
}

// Resolve fetches the lookup payload for identifier and extracts a locator.
// A transport error or non-200 status is an error; a payload that simply
// carries no locator yields ("", nil) so the caller can tell a failed call
// from an empty result.
func (c *Client) Resolve(ctx context.Context, identifier string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := strings.TrimRight(c.cfg.LookupBaseURL, "/") + "/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("lookup status %d for %s", resp.StatusCode, identifier)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("lookup decode: %w", err)
	}

	return ExtractLocator(payload), nil
}

// DownloadURL joins the document base path and a locator.
func (c *Client) DownloadURL(locator string) string {
	return strings.TrimRight(c.cfg.DocBaseURL, "/") + "/" + locator
}
