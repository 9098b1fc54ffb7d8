// Package remote consults an optional remote movement classifier. Requests are
// best-effort: every failure resolves to ErrUnavailable.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/pose"
)

// Request asks the remote classifier about one landmark's movement.
type Request struct {
	RequestID string                    `json:"requestId"`
	Landmark  pose.LandmarkName         `json:"landmark"`
	Features  features.MovementFeatures `json:"features"`
}

// Response is the remote classifier's verdict.
type Response struct {
	IsIntentional bool    `json:"isIntentional"`
	Confidence    float64 `json:"confidence"`
}

// Backend classifies a single request.
type Backend interface {
	Classify(ctx context.Context, req Request) (Response, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// Client is an HTTP JSON Backend.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient creates a Client posting to url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:  strings.TrimSuffix(url, "/"),
		http: &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Backend.
func (c *Client) Classify(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Response{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Response{}, fmt.Errorf("confidence %v out of range", out.Confidence)
	}
	return out, nil
}
