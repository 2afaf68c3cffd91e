package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/pacer/pkg/logger"
)

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: config.Timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches url and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// joinOwners registers owners with the join leaderboard concurrently.
func joinOwners(ctx context.Context, config *Config, owners []string, stats *Stats) {
	logger.Get().Info(ctx, "joining owners", logger.Int("owners", len(owners)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config)
	url := fmt.Sprintf("%s/leaderboards/%s/join", config.BaseURL, config.JoinBoard)

	var accepted, failed, submitted atomic.Int64
	ownerChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for owner := range ownerChan {
				submitted.Add(1)
				if submitJoin(ctx, client, url, owner) {
					accepted.Add(1)
				} else {
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(ownerChan)
		for _, owner := range owners {
			select {
			case <-ctx.Done():
				return
			case ownerChan <- owner:
			}
		}
	}()

	wg.Wait()

	stats.JoinsSubmitted = int(submitted.Load())
	stats.JoinsAccepted = int(accepted.Load())
	stats.JoinsFailed = int(failed.Load())
	logger.Get().Info(ctx, "joins submitted",
		logger.Int("accepted", stats.JoinsAccepted),
		logger.Int("failed", stats.JoinsFailed),
	)
}

// submitJoin posts a single join and reports whether it was accepted.
func submitJoin(ctx context.Context, client *HTTPClient, url, owner string) bool {
	resp, err := client.Post(ctx, url, map[string]string{"owner": owner})
	if err != nil {
		return false
	}
	body, err := readResponseBody(resp)
	if err != nil || resp.StatusCode != StatusAccepted {
		return false
	}
	var ack AckResponse
	return json.Unmarshal(body, &ack) == nil && ack.Status == "accepted"
}
