// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charaverse/charachat/internal/api"
	"github.com/charaverse/charachat/internal/app"
	"github.com/charaverse/charachat/internal/config"
	"github.com/charaverse/charachat/internal/utils"
)

func main() {
	log.Println("启动 CharaChat 服务器...")

	// 1. 加载基础配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. 初始化日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "charachat.log")); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(cfg); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}

	// 4. 设置路由
	router, err := api.SetupRouter(cfg.StaticDir)
	if err != nil {
		log.Fatalf("设置路由失败: %v", err)
	}

	// 5. 启动服务器
	log.Printf("服务器启动在端口 %s", cfg.Port)
	log.Printf("访问地址: http://localhost:%s", cfg.Port)

	runWithGracefulShutdown(router, cfg.Port)
}

// runWithGracefulShutdown 启动服务器并在收到中断信号时优雅关闭
func runWithGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已关闭")
}
