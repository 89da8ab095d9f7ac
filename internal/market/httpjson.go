package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTP retry defaults shared by all provider clients.
const (
	defaultHTTPTimeout = 15 * time.Second
	httpMaxRetries     = 2
	httpRetryDelay     = 500 * time.Millisecond
	httpMaxRetryDelay  = 5 * time.Second
)

// getJSON fetches a URL and decodes the JSON body into result, retrying
// transient failures (network errors, 429, 5xx) with exponential backoff.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, result interface{}) error {
	delay := httpRetryDelay
	var lastErr error

	for attempt := 0; attempt <= httpMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > httpMaxRetryDelay {
				delay = httpMaxRetryDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, url)
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrNoData
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseFloat converts a numeric string to *float64, nil when empty or invalid.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
