package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingBaseURI means the deployment did not configure the indexer.
// It is a hard failure, unlike gaps in the indexed data.
var ErrMissingBaseURI = errors.New("indexer base URI is not configured")

// ErrResponseTooLarge is returned instead of a truncated body.
var ErrResponseTooLarge = errors.New("indexer response too large")

const (
	vaultsPath  = "/%d/vaults/all"
	tokensPath  = "/%d/tokens/all"
	rewardsPath = "/%d/rewards/gauges"

	maxBodyBytes = 32 << 20
)

// Client fetches raw feeds from the indexer API. It does not retry;
// the refresh loop simply tries again on its next tick.
type Client struct {
	baseURL string
	client  *http.Client
	maxBody int64
}

func NewClient(baseURI string, timeout time.Duration) (*Client, error) {
	baseURI = strings.TrimRight(strings.TrimSpace(baseURI), "/")
	if baseURI == "" {
		return nil, ErrMissingBaseURI
	}
	if _, err := url.ParseRequestURI(baseURI); err != nil {
		return nil, fmt.Errorf("invalid indexer base URI %q: %w", baseURI, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURI,
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBodyBytes,
	}, nil
}

func (c *Client) FetchVaults(ctx context.Context, chainID uint64) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf(vaultsPath, chainID))
}

func (c *Client) FetchTokens(ctx context.Context, chainID uint64) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf(tokensPath, chainID))
}

func (c *Client) FetchRewards(ctx context.Context, chainID uint64) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf(rewardsPath, chainID))
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, c.maxBody)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("indexer error %d on %s: %s", resp.StatusCode, path, truncate(string(body), 256))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
