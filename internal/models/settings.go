// internal/models/settings.go
package models

// 支持的提供商标识
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderCustom     = "custom"
)

// DefaultModel 未指定模型时的回退值
const DefaultModel = "gpt-4o-mini"

// Settings 全局用户设置，整体作为单条记录持久化
type Settings struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key"`
	APIBase   string `json:"api_base,omitempty"` // 显式覆盖默认端点
	Model     string `json:"model"`
	Streaming bool   `json:"streaming"`
	Force500  bool   `json:"force500"` // 每次输出强制不少于500字
}

// DefaultSettings 返回首次启动时的默认设置
func DefaultSettings() *Settings {
	return &Settings{
		Provider:  ProviderOpenAI,
		Model:     DefaultModel,
		Streaming: true,
		Force500:  true,
	}
}

// Normalize 填补必填字段的回退值
func (s *Settings) Normalize() {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Provider == "" {
		s.Provider = ProviderOpenAI
	}
}
