package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Envelope is the standard backend response wrapper
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    int             `json:"code,omitempty"`
}

// SessionProvider supplies the current session key; empty means no session
type SessionProvider interface {
	SessionKey() string
}

// Client is a thin HTTP wrapper around the reimbursement backend. It injects
// the bearer session key, busts GET caches, unwraps the response envelope,
// and maps failures onto the unified error taxonomy. It never retries;
// idempotency is the caller's concern.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	defaultTimeout time.Duration
	session        SessionProvider
	onUnauthorized func()
	logger         *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithSessionProvider wires the auth store into outgoing requests
func WithSessionProvider(p SessionProvider) Option {
	return func(c *Client) { c.session = p }
}

// WithUnauthorizedHandler registers the hook invoked on HTTP 401.
// The hook runs once per response, before the error is returned.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithHTTPClient overrides the underlying transport (used in tests)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// SetSessionProvider wires the auth store after construction. The auth store
// itself talks through this client, so the two are tied together in main
// rather than at construction time.
func (c *Client) SetSessionProvider(p SessionProvider) { c.session = p }

// SetUnauthorizedHandler registers the hook invoked on HTTP 401
func (c *Client) SetUnauthorizedHandler(fn func()) { c.onUnauthorized = fn }

// New creates a new backend client
func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// per-request deadlines are applied through the context so that
		// long upload calls can exceed the default
		httpClient:     &http.Client{},
		defaultTimeout: timeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and decodes the envelope data into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", c.defaultTimeout, out)
}

// Post performs a JSON POST request and decodes the envelope data into out
func (c *Client) Post(ctx context.Context, path string, body any, query url.Values, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return c.do(ctx, http.MethodPost, path, query, reader, "application/json", c.defaultTimeout, out)
}

// PostMultipart performs a multipart POST with an explicit timeout, used for
// invoice uploads which far exceed the default deadline.
func (c *Client) PostMultipart(ctx context.Context, path, contentType string, body io.Reader, timeout time.Duration, out any) error {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	return c.do(ctx, http.MethodPost, path, nil, body, contentType, timeout, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + path
	if query == nil {
		query = url.Values{}
	}
	if method == http.MethodGet {
		// cache buster, matches the browser client's behavior
		query.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != nil {
		if key := c.session.SessionKey(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(method, path, err)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, payload)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return &Error{Kind: KindUnknown, Message: "响应格式错误", Err: err}
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "请求失败"
		}
		return &Error{Kind: KindBusiness, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Kind: KindUnknown, Message: "响应数据解析失败", Err: err}
		}
	}
	return nil
}

func (c *Client) transportError(method, path string, err error) error {
	kind := KindNetwork
	msg := "网络连接失败，请检查网络设置"

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
		msg = "请求超时，请稍后重试"
	}

	c.logger.Warn("HTTP request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("kind", kind.String()),
		zap.Error(err))

	return &Error{Kind: kind, Message: msg, Err: err}
}

func (c *Client) statusError(status int, payload []byte) error {
	serverMessage := ""
	var env Envelope
	if json.Unmarshal(payload, &env) == nil {
		serverMessage = env.Message
	}

	switch status {
	case http.StatusBadRequest:
		msg := serverMessage
		if msg == "" {
			msg = "请求参数错误"
		}
		return &Error{Kind: KindBadRequest, Status: status, Message: msg}
	case http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &Error{Kind: KindAuth, Status: status, Message: "登录已过期，请重新登录"}
	case http.StatusForbidden:
		return &Error{Kind: KindForbidden, Status: status, Message: "没有权限访问"}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Message: "请求的资源不存在"}
	case http.StatusInternalServerError:
		msg := serverMessage
		if msg == "" {
			msg = "服务器内部错误"
		}
		return &Error{Kind: KindServer, Status: status, Message: msg}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Kind: KindUnavailable, Status: status, Message: "服务器暂时不可用，请稍后重试"}
	default:
		return &Error{Kind: KindUnknown, Status: status, Message: fmt.Sprintf("请求失败: %d", status)}
	}
}
