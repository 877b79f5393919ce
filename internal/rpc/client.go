package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"quickflare/internal/logger"
)

// APIError is a non-2xx answer of the control API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control API returned %d: %s", e.StatusCode, e.Message)
}

/**
 * Client talks to a running quickflare control API
 * @property {string} baseURL - Scheme and host of every request
 * @property {*http.Client} client - Dials TCP or the unix socket
 */
type Client struct {
	baseURL string
	client  *http.Client
}

/**
 * Create a client for the control API
 * @param {string} addr - "host:port" or "unix:///path/to.sock"
 * @param {time.Duration} timeout - Timeout of one request
 * @returns {*Client} Returns the client, no connection is made yet
 * @example
 * c := rpc.NewClient("127.0.0.1:8099", 30*time.Second)
 * var detail models.TunnelDetail
 * err := c.Get(ctx, "/quickflare/api/v1/tunnel", &detail)
 */
func NewClient(addr string, timeout time.Duration) *Client {
	transport := &http.Transport{}
	baseURL := "http://" + addr

	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}
		baseURL = "http://unix"
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Get 发送GET请求，响应JSON解码到out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, out)
}

// Post 发送无请求体的POST请求，响应JSON解码到out
func (c *Client) Post(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodPost, path, out)
}

func (c *Client) call(ctx context.Context, method, path string, out any) error {
	url := c.baseURL + path
	logger.Debugf("Sending %s request to %s", method, url)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	rsp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return &APIError{StatusCode: rsp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to deserialize response: %w", err)
	}
	return nil
}
