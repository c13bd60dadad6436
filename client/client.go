// Package client is a JSON-RPC and SSE client for A2A servers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sammcj/go-a2a-core/a2a"
)

// Client is an A2A client for interacting with A2A servers. Protocol
// failures are returned as *a2a.Error.
type Client struct {
	config   Config
	endpoint string
	cardURL  string

	mu   sync.Mutex
	card *a2a.AgentCard
}

// New creates a client for the agent served at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	root := strings.TrimSuffix(u.String(), "/")
	return &Client{
		config:   cfg,
		endpoint: root + ensureSlash(cfg.A2APath),
		cardURL:  root + ensureSlash(cfg.AgentCardPath),
		card:     cfg.AgentCard,
	}, nil
}

func ensureSlash(p string) string {
	if p == "" || p[0] == '/' {
		return p
	}
	return "/" + p
}

// FetchAgentCard fetches the agent card from the server. The card is
// cached after the first successful fetch.
func (c *Client) FetchAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	c.mu.Lock()
	cached := c.card
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch agent card: status code %d", resp.StatusCode)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to parse agent card: %w", err)
	}

	c.mu.Lock()
	c.card = &card
	c.mu.Unlock()
	return &card, nil
}

// SendTask sends a message to a task and waits for the request to settle.
func (c *Client) SendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodSendTask, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask retrieves a task. A nil historyLength returns the full history.
func (c *Client) GetTask(ctx context.Context, taskID string, historyLength *int) (*a2a.Task, error) {
	var t a2a.Task
	params := a2a.TaskQueryParams{ID: taskID, HistoryLength: historyLength}
	if err := c.call(ctx, a2a.MethodGetTask, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask cancels a task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodCancelTask, a2a.TaskIDParams{ID: taskID}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SetPushNotification sets the push notification configuration for a task.
func (c *Client) SetPushNotification(ctx context.Context, taskID string, cfg a2a.PushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	params := a2a.TaskPushNotificationConfig{ID: taskID, PushNotificationConfig: cfg}
	if err := c.call(ctx, a2a.MethodSetPushNotification, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPushNotification gets the push notification configuration for a task.
func (c *Client) GetPushNotification(ctx context.Context, taskID string) (*a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	if err := c.call(ctx, a2a.MethodGetPushNotification, a2a.TaskIDParams{ID: taskID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends a unary JSON-RPC request and unmarshals the result.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, body, err := newRequest(method, params)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return decodeResponse(data, id, result)
}

// rpcResponse is the client side view of a JSON-RPC response.
type rpcResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Result  json.RawMessage   `json:"result"`
	Error   *a2a.JSONRPCError `json:"error"`
}

func decodeResponse(data []byte, id json.RawMessage, result any) error {
	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse JSON-RPC response: %w", err)
	}
	if resp.Error != nil {
		return &a2a.Error{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if id != nil && !bytes.Equal(resp.ID, id) {
		return fmt.Errorf("response id %s does not match request id %s", resp.ID, id)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

func newRequest(method string, params any) (json.RawMessage, []byte, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request id: %w", err)
	}
	body, err := json.Marshal(a2a.JSONRPCRequest{
		JSONRPC: a2a.JSONRPCVersion,
		Method:  method,
		Params:  rawParams,
		ID:      id,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return id, body, nil
}

func (c *Client) post(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	for name, value := range c.config.Headers {
		req.Header.Set(name, value)
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}
