package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	retryBaseDelay = 100 * time.Millisecond
)

// Client 带默认请求头与有限重试的 JSON HTTP 客户端
// 仅 5xx 触发重试，4xx 属于调用方错误直接返回
type Client struct {
	hc      *http.Client
	headers http.Header
	retries int
}

// ClientOption 客户端配置项
type ClientOption func(*Client)

// WithTimeout 设置整体请求超时
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithHeaders 追加默认请求头
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithRetries 设置 5xx 重试次数
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithHTTPClient 注入底层客户端，测试或自定义 Transport 时使用
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewClient 创建客户端
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: defaultTimeout},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.headers.Get("User-Agent") == "" {
		c.headers.Set("User-Agent", "ragbot/1.0")
	}
	return c
}

// Do 执行请求，5xx 时按线性退避重试
// 默认头不覆盖请求上已有的同名头
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, vs := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = vs
		}
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		resp, err = c.hc.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt >= c.retries {
			return resp, err
		}

		// 重试前丢弃上一次响应并重置请求体，
		// 不重置的话第二次发出去的是已被读完的空 body
		if resp != nil {
			resp.Body.Close()
		}
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("重置请求体失败: %w", bodyErr)
			}
			req.Body = body
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
		}
	}
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 GET 请求失败: %w", err)
	}
	return c.Do(ctx, req)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("创建 POST 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// GetJSON 发送 GET 请求并把 JSON 响应解码到 result
func (c *Client) GetJSON(ctx context.Context, url string, result interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("GET 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP 状态异常: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("解析 JSON 响应失败: %w", err)
	}
	return nil
}

// PostJSON 发送 JSON 请求体并把响应解码到 result
// result 为 nil 时丢弃响应体
func (c *Client) PostJSON(ctx context.Context, url string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	resp, err := c.Post(ctx, url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("POST 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("HTTP 状态异常: %d", resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("解析 JSON 响应失败: %w", err)
	}
	return nil
}
