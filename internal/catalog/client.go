package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"supportlog/internal"
	"supportlog/internal/config"
)

const maxAttempts = 5

// Client downloads the technician catalog published by the support team.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type remoteCatalog struct {
	Rules    []internal.NormalizationRule `json:"rules"`
	Official []string                     `json:"official"`
	Version  string                       `json:"version"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.CatalogRateLimitRPS),
	}
}

// Fetch returns the remote catalog and the version string it declares (may be empty).
func (c *Client) Fetch(ctx context.Context) (internal.TechnicianCatalog, string, error) {
	body, err := c.fetchJSON(ctx)
	if err != nil {
		return internal.TechnicianCatalog{}, "", err
	}

	var payload remoteCatalog
	if err := json.Unmarshal(body, &payload); err != nil {
		return internal.TechnicianCatalog{}, "", fmt.Errorf("decode catalog: %w", err)
	}
	cat := internal.TechnicianCatalog{Rules: payload.Rules, Official: payload.Official}
	if err := Validate(cat); err != nil {
		return internal.TechnicianCatalog{}, "", err
	}
	return cat, payload.Version, nil
}

func (c *Client) fetchJSON(ctx context.Context) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogURL) == "" {
		return nil, errors.New("missing CATALOG_URL")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CatalogURL, nil)
		if err != nil {
			return nil, err
		}
		if c.cfg.CatalogToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogToken)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = fmt.Errorf("catalog status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("catalog endpoint error: status=%d body=%s", resp.StatusCode, string(body))
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
