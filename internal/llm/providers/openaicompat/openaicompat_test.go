// internal/llm/providers/openaicompat/openaicompat_test.go
package openaicompat

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charaverse/charachat/internal/llm"
)

// TestCustomProviderDefaultBaseURL 自定义提供者未配置端点时回退到OpenAI默认端点
func TestCustomProviderDefaultBaseURL(t *testing.T) {
	provider, err := llm.GetProvider("custom", map[string]string{"api_key": "test-key"})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	p, ok := provider.(*Provider)
	if !ok {
		t.Fatalf("提供者类型错误: %T", provider)
	}
	if p.baseURL != "https://api.openai.com/v1" {
		t.Fatalf("默认端点错误: %q", p.baseURL)
	}
}

// TestCustomProviderBaseURLOverride 显式端点覆盖默认值并去除尾部斜杠
func TestCustomProviderBaseURLOverride(t *testing.T) {
	provider, err := llm.GetProvider("custom", map[string]string{
		"api_key":  "test-key",
		"base_url": "http://localhost:9000/v1/",
	})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	if p := provider.(*Provider); p.baseURL != "http://localhost:9000/v1" {
		t.Fatalf("端点覆盖错误: %q", p.baseURL)
	}
}

// TestInitializeMissingAPIKey 密钥缺失时初始化失败
func TestInitializeMissingAPIKey(t *testing.T) {
	if _, err := llm.GetProvider("openai", map[string]string{}); err == nil {
		t.Fatal("密钥缺失应初始化失败")
	}
}

// TestStatusErrorExcerptRuneBoundary 正文摘录按字符截断，多字节字符不被拦腰切断
func TestStatusErrorExcerptRuneBoundary(t *testing.T) {
	body := strings.Repeat("錯", 300)
	resp := &http.Response{
		StatusCode: http.StatusInternalServerError,
		Body:       io.NopCloser(strings.NewReader(body)),
	}

	msg := statusError(resp).Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("错误消息含无效UTF-8: %q", msg)
	}
	if !strings.Contains(msg, "HTTP 500") {
		t.Fatalf("错误消息应携带状态码: %q", msg)
	}
	if !strings.Contains(msg, strings.Repeat("錯", bodyExcerptLimit)) {
		t.Fatalf("摘录应保留200个字符: %q", msg)
	}
	if strings.Contains(msg, strings.Repeat("錯", bodyExcerptLimit+1)) {
		t.Fatalf("摘录不应超过200个字符: %q", msg)
	}
}

// TestStatusErrorShortBodyUntouched 短正文原样保留
func TestStatusErrorShortBodyUntouched(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(strings.NewReader("限流中")),
	}

	msg := statusError(resp).Error()
	if !strings.Contains(msg, "HTTP 429：限流中") {
		t.Fatalf("短正文应原样保留: %q", msg)
	}
}
