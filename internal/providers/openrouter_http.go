package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
)

// doRequest makes an HTTP request to OpenRouter with retry/backoff on
// transient failures (network errors, 429, 5xx, Cloudflare edge errors).
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var orResp *openRouterResponse
	err = retry.Do(
		func() error {
			resp, err := c.doOnce(ctx, path, bodyBytes)
			if err != nil {
				return err
			}
			orResp = resp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(c.retryDelay/2),
		retry.RetryIf(func(err error) bool {
			var re *retryableHTTPError
			return errors.As(err, &re)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return orResp, nil
}

func (c *OpenRouterClient) doOnce(ctx context.Context, path string, bodyBytes []byte) (*openRouterResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "structocr")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retryableHTTPError{err: fmt.Errorf("request failed: %w", err)}
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &retryableHTTPError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if shouldRetryStatus(resp.StatusCode) {
		return nil, &retryableHTTPError{
			status: resp.StatusCode,
			err:    fmt.Errorf("OpenRouter error (status %d): %s", resp.StatusCode, truncateBody(respBody)),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenRouter error (status %d): %s", resp.StatusCode, truncateBody(respBody))
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// OpenRouter can return 200 with an error object at the API/model level.
	if orResp.Error != nil {
		return nil, fmt.Errorf("OpenRouter API error: %s", orResp.Error.Message)
	}

	return &orResp, nil
}

// retryableHTTPError marks transport failures worth retrying.
type retryableHTTPError struct {
	status int
	err    error
}

func (e *retryableHTTPError) Error() string { return e.err.Error() }
func (e *retryableHTTPError) Unwrap() error { return e.err }

// shouldRetryStatus returns true for status codes that should be retried.
func shouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	case 520, 521, 522, 523, 524: // Cloudflare errors
		return true
	default:
		return statusCode >= 500
	}
}

func truncateBody(b []byte) string {
	const max = 2048
	if len(b) > max {
		return string(b[:max]) + "...[truncated]"
	}
	return string(b)
}
