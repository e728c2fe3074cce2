package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client reads metrics from the scraping collaborator's HTTP API.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metrics API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

type metricResponse struct {
	Value float64 `json:"value"`
}

func (c *Client) Read(ctx context.Context, contentRef, metricType string) (float64, error) {
	if contentRef == "" || metricType == "" {
		return 0, fmt.Errorf("content ref and metric type are required")
	}
	query := url.Values{}
	query.Set("content", contentRef)
	query.Set("metric", metricType)

	fullURL := c.host + "/metric?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed metricResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode metric response: %w", err)
	}
	return parsed.Value, nil
}
