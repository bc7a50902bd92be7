package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient 测试客户端构造与选项
func TestNewClient(t *testing.T) {
	client := NewClient()
	if client == nil {
		t.Fatal("NewClient() 返回 nil")
	}
	if client.hc.Timeout != 30*time.Second {
		t.Errorf("默认超时时间应为30秒，实际为 %v", client.hc.Timeout)
	}
	if ua := client.headers.Get("User-Agent"); ua != "ragbot/1.0" {
		t.Errorf("默认User-Agent不正确: %s", ua)
	}

	custom := NewClient(
		WithTimeout(10*time.Second),
		WithHeaders(map[string]string{"X-Custom": "value"}),
		WithRetries(3),
	)
	if custom.hc.Timeout != 10*time.Second {
		t.Errorf("自定义超时时间应为10秒，实际为 %v", custom.hc.Timeout)
	}
	if custom.headers.Get("X-Custom") != "value" {
		t.Error("自定义头未设置")
	}
	if custom.retries != 3 {
		t.Errorf("重试次数应为3，实际为 %d", custom.retries)
	}

	hc := &http.Client{Timeout: 5 * time.Second}
	injected := NewClient(WithHTTPClient(hc))
	if injected.hc != hc {
		t.Error("WithHTTPClient 未生效")
	}
}

// TestClientGetJSON 测试GetJSON，默认头应随请求带出
func TestClientGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("期望GET请求，实际为 %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "ragbot/1.0" {
			t.Errorf("User-Agent 未带出: %s", ua)
		}
		if key := r.Header.Get("Api-Key"); key != "secret" {
			t.Errorf("默认头 Api-Key 未带出: %s", key)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(WithHeaders(map[string]string{"Api-Key": "secret"}))

	var result map[string]string
	if err := client.GetJSON(context.Background(), server.URL, &result); err != nil {
		t.Fatalf("GetJSON() 错误: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("期望 status='ok'，实际为 '%s'", result["status"])
	}
}

// TestClientGetJSONNon200 测试非200状态返回错误
func TestClientGetJSONNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var result map[string]string
	if err := NewClient().GetJSON(context.Background(), server.URL, &result); err == nil {
		t.Fatal("404 应返回错误")
	}
}

// TestClientPostJSON 测试PostJSON的编解码链路
func TestClientPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("期望POST请求，实际为 %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("期望Content-Type为application/json，实际为 %s", ct)
		}

		var reqBody map[string]string
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": reqBody["message"]})
	}))
	defer server.Close()

	var result map[string]string
	err := NewClient().PostJSON(context.Background(), server.URL, map[string]string{"message": "hello"}, &result)
	if err != nil {
		t.Fatalf("PostJSON() 错误: %v", err)
	}
	if result["echo"] != "hello" {
		t.Errorf("期望 echo='hello'，实际为 '%s'", result["echo"])
	}
}

// TestClientRetryOn5xx 测试5xx重试，且重试时请求体完整重发
func TestClientRetryOn5xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)

		// 每次都要能读到完整请求体
		var reqBody map[string]string
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("第 %d 次请求解析请求体失败: %v", n, err)
		}
		if reqBody["message"] != "hello" {
			t.Errorf("第 %d 次请求体不完整: %v", n, reqBody)
		}

		// 前两次返回503，第三次成功
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": reqBody["message"]})
	}))
	defer server.Close()

	client := NewClient(WithRetries(3))

	var result map[string]string
	if err := client.PostJSON(context.Background(), server.URL, map[string]string{"message": "hello"}, &result); err != nil {
		t.Fatalf("PostJSON() 错误: %v", err)
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("期望重试后共3次请求，实际 %d 次", got)
	}
	if result["echo"] != "hello" {
		t.Errorf("期望 echo='hello'，实际为 '%s'", result["echo"])
	}
}

// TestClientNoRetryOn4xx 测试4xx不重试
func TestClientNoRetryOn4xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithRetries(3))

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() 错误: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("期望状态码400，实际 %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("4xx不应重试，实际请求了 %d 次", got)
	}
}

// TestClientRetryRespectsContext 测试退避等待期间响应上下文取消
func TestClientRetryRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithRetries(10))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, server.URL); err == nil {
		t.Fatal("上下文取消后应返回错误")
	}
}
