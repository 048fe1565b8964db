// internal/app/app.go
package app

import (
	"fmt"

	"github.com/charaverse/charachat/internal/api"
	"github.com/charaverse/charachat/internal/config"
	"github.com/charaverse/charachat/internal/di"
	"github.com/charaverse/charachat/internal/services"
	"github.com/charaverse/charachat/internal/storage"

	// 注册OpenAI兼容提供者（openai/openrouter/custom）
	_ "github.com/charaverse/charachat/internal/llm/providers/openaicompat"
)

// InitServices 按依赖顺序初始化所有服务并注册进容器
func InitServices(cfg *config.Config) error {
	container := di.GetContainer()

	store, err := storage.NewRecordStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化记录存储失败: %w", err)
	}
	container.Register("store", store)

	settingsService, err := services.NewSettingsService(store)
	if err != nil {
		return fmt.Errorf("初始化设置服务失败: %w", err)
	}
	container.Register("settings", settingsService)

	characterService, err := services.NewCharacterService(store)
	if err != nil {
		return fmt.Errorf("初始化角色服务失败: %w", err)
	}
	container.Register("character", characterService)

	actionService, err := services.NewActionService(store)
	if err != nil {
		return fmt.Errorf("初始化按键服务失败: %w", err)
	}
	container.Register("action", actionService)

	sessionService, err := services.NewSessionService(store)
	if err != nil {
		return fmt.Errorf("初始化会话服务失败: %w", err)
	}
	container.Register("session", sessionService)

	llmService := services.NewLLMService(settingsService)
	container.Register("llm", llmService)

	hub := api.NewChatHub()
	container.Register("hub", hub)

	chatService := services.NewChatService(
		characterService,
		actionService,
		sessionService,
		settingsService,
		llmService,
		hub,
	)
	container.Register("chat", chatService)

	exportService := services.NewExportService(characterService, sessionService)
	container.Register("export", exportService)

	return nil
}
