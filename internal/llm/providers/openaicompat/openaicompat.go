// internal/llm/providers/openaicompat/openaicompat.go
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/llm"
)

// 非成功响应的正文摘录上限
const bodyExcerptLimit = 200

func init() {
	llm.Register("openai", func() llm.Provider {
		return &Provider{
			name:    "OpenAI",
			baseURL: "https://api.openai.com/v1",
		}
	})
	llm.Register("openrouter", func() llm.Provider {
		return &Provider{
			name:           "OpenRouter",
			baseURL:        "https://openrouter.ai/api/v1",
			extraHeaders:   true,
			defaultReferer: "https://charachat.example.com",
			defaultTitle:   "角色AI聊天",
		}
	})
	llm.Register("custom", func() llm.Provider {
		return &Provider{
			name:    "Custom",
			baseURL: "https://api.openai.com/v1",
		}
	})
}

// Provider 面向OpenAI兼容端点的聊天补全提供者
// openai/openrouter/custom 三种注册仅在默认端点与附加请求头上有差异
type Provider struct {
	name           string
	apiKey         string
	baseURL        string
	client         *http.Client
	defaultModel   string
	extraHeaders   bool // OpenRouter 要求的来源标注头
	httpReferer    string
	appName        string
	defaultReferer string
	defaultTitle   string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimSuffix(baseURL, "/")
	}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}

	if referer, exists := config["http_referer"]; exists && referer != "" {
		p.httpReferer = referer
	} else {
		p.httpReferer = p.defaultReferer
	}

	if appName, exists := config["app_name"]; exists && appName != "" {
		p.appName = appName
	} else {
		p.appName = p.defaultTitle
	}

	return nil
}

func (p *Provider) GetName() string {
	return p.name
}

// buildBody 构建OpenAI兼容的请求体
func (p *Provider) buildBody(req llm.CompletionRequest, stream bool) map[string]interface{} {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := map[string]interface{}{
		"model":             model,
		"messages":          req.Messages,
		"temperature":       req.Temperature,
		"top_p":             req.TopP,
		"presence_penalty":  req.PresencePenalty,
		"frequency_penalty": req.FrequencyPenalty,
		"stream":            stream,
	}

	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	return body
}

// newRequest 创建带认证头的HTTP请求
func (p *Provider) newRequest(ctx context.Context, body map[string]interface{}, stream bool) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/chat/completions",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if p.extraHeaders {
		httpReq.Header.Set("HTTP-Referer", p.httpReferer)
		httpReq.Header.Set("X-Title", p.appName)
	}

	return httpReq, nil
}

// statusError 将非成功状态转换为协议错误，正文按字符截断到200字
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	excerpt := string(body)
	if runes := []rune(excerpt); len(runes) > bodyExcerptLimit {
		excerpt = string(runes[:bodyExcerptLimit])
	}
	return apperrors.NewProtocolError(resp.StatusCode, excerpt)
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	httpReq, err := p.newRequest(ctx, p.buildBody(req, false), false)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError("请求发送失败", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(httpResp)
	}

	// 解析响应
	var response struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, apperrors.NewTransportError("解析响应失败", err)
	}

	// 缺失的提取结果按空文本处理，而不是错误
	result := &llm.CompletionResponse{
		ModelName:    response.Model,
		ProviderName: p.name,
	}
	if len(response.Choices) > 0 {
		result.Text = response.Choices[0].Message.Content
		result.FinishReason = response.Choices[0].FinishReason
	}

	return result, nil
}

// StreamCompletion 实现流式响应
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	httpReq, err := p.newRequest(ctx, p.buildBody(req, true), true)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError("请求发送失败", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		return nil, statusError(httpResp)
	}

	chunks := make(chan llm.StreamChunk)

	go func() {
		defer httpResp.Body.Close()
		defer close(chunks)

		reader := bufio.NewReader(httpResp.Body)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					chunks <- llm.StreamChunk{Done: true, FinishReason: "error"}
				}
				return
			}

			line = strings.TrimSpace(line)

			// 空行或注释帧
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}

			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			// 终止哨兵，按正常完成处理
			if payload == "[DONE]" {
				chunks <- llm.StreamChunk{Done: true, FinishReason: "stop"}
				return
			}

			var frame struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
			}

			// 畸形帧静默跳过，不中断整个流
			if err := json.Unmarshal([]byte(payload), &frame); err != nil {
				continue
			}

			if len(frame.Choices) > 0 {
				if content := frame.Choices[0].Delta.Content; content != "" {
					chunks <- llm.StreamChunk{Text: content}
				}
			}
		}
	}()

	return chunks, nil
}
