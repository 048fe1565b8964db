// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperrors "github.com/charaverse/charachat/internal/errors"
	"github.com/charaverse/charachat/internal/llm"
	"github.com/charaverse/charachat/internal/models"
	"github.com/charaverse/charachat/internal/utils"
)

// 固定采样参数，所有生成轮共用
const (
	samplingTemperature      = 0.9
	samplingTopP             = 0.95
	samplingPresencePenalty  = 0.3
	samplingFrequencyPenalty = 0.2
)

// StreamSink 接收流式生成的累计文本，用于渐进式渲染
// 推送属于副作用，不影响调用的返回值契约
type StreamSink interface {
	Push(accumulated string)
}

// LLMService 提供统一的大语言模型调用接口
// 按当前设置解析提供商与端点，把各类失败归一为应用错误
type LLMService struct {
	settings *SettingsService
	logger   *utils.Logger

	providerMutex sync.Mutex
	provider      llm.Provider
	fingerprint   string
}

// NewLLMService 创建LLM服务
func NewLLMService(settings *SettingsService) *LLMService {
	return &LLMService{
		settings: settings,
		logger:   utils.GetLogger(),
	}
}

// providerFor 按设置解析提供商实例，设置未变时复用
func (s *LLMService) providerFor(cfg models.Settings) (llm.Provider, error) {
	fingerprint := strings.Join([]string{cfg.Provider, cfg.APIKey, cfg.APIBase, cfg.Model}, "\x00")

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	if s.provider != nil && s.fingerprint == fingerprint {
		return s.provider, nil
	}

	provider, err := llm.GetProvider(cfg.Provider, map[string]string{
		"api_key":       cfg.APIKey,
		"base_url":      cfg.APIBase,
		"default_model": cfg.Model,
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeConfiguration, "提供商初始化失敗", err)
	}

	s.provider = provider
	s.fingerprint = fingerprint
	return provider, nil
}

// ChatCompletion 执行一次聊天补全
// 流式模式下逐帧累积增量，并在提供了sink时即时推送累计文本
// 返回完整累计文本（两端去空白）
func (s *LLMService) ChatCompletion(ctx context.Context, messages []llm.ChatMessage, maxTokens int, streaming bool, sink StreamSink) (string, error) {
	cfg := s.settings.Get()

	// 凭据缺失时不发起任何网络请求
	if cfg.APIKey == "" {
		return "", apperrors.NewConfigurationError("尚未設定 API Key")
	}

	provider, err := s.providerFor(cfg)
	if err != nil {
		return "", err
	}

	req := llm.CompletionRequest{
		Messages:         messages,
		Model:            cfg.Model,
		MaxTokens:        maxTokens,
		Temperature:      samplingTemperature,
		TopP:             samplingTopP,
		PresencePenalty:  samplingPresencePenalty,
		FrequencyPenalty: samplingFrequencyPenalty,
	}

	if !streaming {
		resp, err := provider.CompleteText(ctx, req)
		if err != nil {
			return "", normalizeCallError(err)
		}
		return strings.TrimSpace(resp.Text), nil
	}

	chunks, err := provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", normalizeCallError(err)
	}

	var acc strings.Builder
	for chunk := range chunks {
		if chunk.Done {
			if chunk.FinishReason == "error" {
				return "", apperrors.NewTransportError("串流讀取中斷", nil)
			}
			break
		}
		acc.WriteString(chunk.Text)
		if sink != nil {
			sink.Push(acc.String())
		}
	}

	return strings.TrimSpace(acc.String()), nil
}

// normalizeCallError 把底层失败归一为统一的错误分类
func normalizeCallError(err error) error {
	var appError *apperrors.AppError
	if errors.As(err, &appError) {
		return err
	}
	return apperrors.NewTransportError("模型調用失敗", err)
}
