package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept in an APIError.
const maxErrorBody = 4 << 10

// doGetJSON performs a GET request and unmarshals the JSON response into the result type.
func doGetJSON[T any](ctx context.Context, c *Client, pathSegments ...string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(pathSegments...), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	return doJSON[T](c, req)
}

// doJSON sends req and decodes a 200 JSON response. Other statuses become an *APIError.
func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL built from the configured server URL
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, nil
}

// readErrorBody returns the "error" field of a JSON error body, or the raw body text.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "could not read response body"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
