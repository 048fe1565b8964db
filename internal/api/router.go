// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/charaverse/charachat/internal/di"
	"github.com/charaverse/charachat/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter(staticDir string) (*gin.Engine, error) {
	container := di.GetContainer()

	settingsService, ok := container.Get("settings").(*services.SettingsService)
	if !ok {
		return nil, fmt.Errorf("設定服務未正確初始化")
	}

	characterService, ok := container.Get("character").(*services.CharacterService)
	if !ok {
		return nil, fmt.Errorf("角色服務未正確初始化")
	}

	actionService, ok := container.Get("action").(*services.ActionService)
	if !ok {
		return nil, fmt.Errorf("按鍵服務未正確初始化")
	}

	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("會話服務未正確初始化")
	}

	chatService, ok := container.Get("chat").(*services.ChatService)
	if !ok {
		return nil, fmt.Errorf("對話服務未正確初始化")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("導出服務未正確初始化")
	}

	hub, ok := container.Get("hub").(*ChatHub)
	if !ok {
		return nil, fmt.Errorf("渲染推送中心未正確初始化")
	}

	handler := NewHandler(
		settingsService,
		characterService,
		actionService,
		sessionService,
		chatService,
		exportService,
	)

	r := gin.Default()
	r.Use(corsMiddleware())

	// 前端页面与静态资源
	r.Static("/static", staticDir)
	r.StaticFile("/", staticDir+"/index.html")

	// WebSocket 渲染通道
	r.GET("/ws/chat/:id", hub.HandleConnection)

	api := r.Group("/api")
	{
		// 设置
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("", handler.SaveSettings)
		}

		// 角色
		charactersGroup := api.Group("/characters")
		{
			charactersGroup.GET("", handler.ListCharacters)
			charactersGroup.POST("", handler.CreateCharacter)
			charactersGroup.GET("/:id", handler.GetCharacter)
			charactersGroup.PUT("/:id", handler.UpdateCharacter)
			charactersGroup.DELETE("/:id", handler.DeleteCharacter)

			// 会话与对话回合（按角色）
			charactersGroup.GET("/:id/session", handler.GetSession)
			charactersGroup.POST("/:id/session/clear", handler.ClearSession)
			charactersGroup.PUT("/:id/session/memory", handler.SaveMemory)
			charactersGroup.PUT("/:id/session/affection", handler.SetAffection)
			charactersGroup.POST("/:id/session/opener", handler.UseOpener)
			charactersGroup.POST("/:id/chat", handler.SendMessage)
			charactersGroup.POST("/:id/memory/summarize", handler.SummarizeMemory)
			charactersGroup.GET("/:id/export", handler.ExportChat)
		}

		// 快捷按键
		actionsGroup := api.Group("/actions")
		{
			actionsGroup.GET("", handler.ListActions)
			actionsGroup.POST("", handler.CreateAction)
			actionsGroup.PUT("/:id", handler.UpdateAction)
			actionsGroup.DELETE("/:id", handler.DeleteAction)
		}
	}

	return r, nil
}
