// Package client is an HTTP client for a running picscreenr server.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the picscreenr HTTP API
type Client struct {
	URL        string
	parsedURL  *url.URL
	httpClient *http.Client
}

// New creates a client for the server at rawURL, e.g. http://localhost:8080
func New(rawURL string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", rawURL)
	}
	return &Client{
		URL:       parsed.String(),
		parsedURL: parsed,
		// uploads wait for captioning and resolution on the server
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// resolveURL builds a full URL from the base URL and the given path segments.
func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// APIError is a non-200 response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
