// Package fetch retrieves remote documents, with an advisory HEAD probe
// ahead of the full download.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ppls/internal/config"
	"ppls/internal/ratelimit"
)

type Fetcher struct {
	cfg            config.Config
	probeClient    *http.Client
	downloadClient *http.Client
	limiter        *ratelimit.Limiter
}

func New(cfg config.Config, limiter *ratelimit.Limiter) *Fetcher {
	return &Fetcher{
		cfg:            cfg,
		probeClient:    &http.Client{Timeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond},
		downloadClient: &http.Client{Timeout: time.Duration(cfg.DownloadTimeoutMs) * time.Millisecond},
		limiter:        limiter,
	}
}

// Probe issues a HEAD request and reports the declared content length.
// It is advisory only: any error, non-2xx status, or missing length header
// yields ok=false and must never block the pipeline.
func (f *Fetcher) Probe(ctx context.Context, url string) (int64, bool) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.probeClient.Do(req)
	if err != nil {
		return 0, false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false
	}
	if resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// Download retrieves the document body. Reads are capped just past the
// configured byte maximum so an oversized document is detectable without
// unbounded memory.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.downloadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxDocBytes+1))
	if err != nil {
		return nil, err
	}
	return data, nil
}
