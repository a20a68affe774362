package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/infrastructure/config"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 4 << 20

	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 10000
)

// Document is a generic JSON object returned by the API.
type Document map[string]any

// Logger is the logging surface the client needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ListClientsParams filters ListClients. Zero values are omitted, except
// Page and Limit which default to 1 and 10.
type ListClientsParams struct {
	Page  int
	Limit int

	Node          string
	ClientID      string
	Username      string
	IPAddress     string
	ConnState     string
	ProtoVer      string
	LikeClientID  string
	LikeUsername  string
	LikeIPAddress string

	// CleanStart filters on the clean start flag when non-nil.
	CleanStart *bool
}

func (p ListClientsParams) values() url.Values {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	for key, val := range map[string]string{
		"node":            p.Node,
		"clientid":        p.ClientID,
		"username":        p.Username,
		"ip_address":      p.IPAddress,
		"conn_state":      p.ConnState,
		"proto_ver":       p.ProtoVer,
		"like_clientid":   p.LikeClientID,
		"like_username":   p.LikeUsername,
		"like_ip_address": p.LikeIPAddress,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	if p.CleanStart != nil {
		v.Set("clean_start", strconv.FormatBool(*p.CleanStart))
	}
	return v
}

// PublishRequest is the body of POST /publish.
type PublishRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     int    `json:"qos"`
	Retain  bool   `json:"retain"`
}

// Client calls the EMQX HTTP API.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	logger  Logger
}

// New creates a Client from the management configuration.
//
// Returns:
//   - *Client: Ready-to-use client
//   - error: ErrNotConfigured when no URL is set, ErrInvalidRequest for a malformed URL
func New(cfg config.ManagementConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", ErrInvalidRequest, cfg.URL)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		http:    &http.Client{Timeout: timeout},
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger. Call before first use.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// ListClients returns a page of connected MQTT clients.
func (c *Client) ListClients(ctx context.Context, params ListClientsParams) (Document, error) {
	c.logger.Info("listing MQTT clients", "page", params.Page, "limit", params.Limit)
	return c.do(ctx, http.MethodGet, "/clients?"+params.values().Encode(), nil)
}

// GetClient returns details of one client.
func (c *Client) GetClient(ctx context.Context, clientID string) (Document, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidRequest)
	}
	c.logger.Info("getting MQTT client", "client_id", clientID)
	return c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID), nil)
}

// KickClient disconnects a client from the broker.
func (c *Client) KickClient(ctx context.Context, clientID string) (Document, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidRequest)
	}
	c.logger.Info("kicking MQTT client", "client_id", clientID)
	doc, err := c.do(ctx, http.MethodDelete, "/clients/"+url.PathEscape(clientID), nil)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		doc = Document{
			"success": true,
			"message": fmt.Sprintf("Client %s has been disconnected", clientID),
		}
	}
	return doc, nil
}

// Publish publishes a message through the HTTP API.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (Document, error) {
	if req.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if req.QoS < 0 || req.QoS > 2 {
		return nil, fmt.Errorf("%w: qos %d (must be 0, 1, or 2)", ErrInvalidRequest, req.QoS)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	c.logger.Info("publishing via management API", "topic", req.Topic, "qos", req.QoS)
	return c.do(ctx, http.MethodPost, "/publish", body)
}

// do performs one request and decodes the response.
//
// A 2xx response with an empty body decodes to an empty Document; a JSON
// array body is returned under "data".
func (c *Client) do(ctx context.Context, method, path string, body []byte) (Document, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("management API request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		c.logger.Error("management API error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, apiErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return Document(v), nil
	default:
		return Document{"data": v}, nil
	}
}
