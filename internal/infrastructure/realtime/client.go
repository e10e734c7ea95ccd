package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"voice-navigator/internal/application/port/output"
)

// Client talks to the HTTP side of the Realtime API: ephemeral keys and the
// SDP offer/answer exchange.
type Client struct {
	baseURL string
	model   string
	voice   string
	http    *http.Client
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"content_type", req.Header.Get("Content-Type"),
	)

	resp, err := t.base.RoundTrip(req)

	if resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
		)
	}

	return resp, err
}

func NewClient(opts Options, logger output.LoggerPort) *Client {
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		voice:   opts.Voice,
		http: &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: logger},
		},
	}
}

type sessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

type sessionResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

// EphemeralKey trades the stored API key for a short-lived session key.
func (c *Client) EphemeralKey(ctx context.Context, apiKey string) (string, error) {
	body, err := json.Marshal(sessionRequest{Model: c.model, Voice: c.voice})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("create realtime session: %w", err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode realtime session: %w", err)
	}
	if resp.ClientSecret.Value == "" {
		return "", fmt.Errorf("realtime session has no client secret")
	}
	return resp.ClientSecret.Value, nil
}

// ExchangeSDP posts the local offer and returns the remote answer.
func (c *Client) ExchangeSDP(ctx context.Context, key, offer string) (string, error) {
	endpoint := c.baseURL + "/realtime?model=" + url.QueryEscape(c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/sdp")

	data, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("sdp exchange: %w", err)
	}
	return string(data), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("OpenAI API error: %d %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// websocketURL derives the wss endpoint from the HTTP base URL.
func (c *Client) websocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime?model=" + url.QueryEscape(c.model)
}
