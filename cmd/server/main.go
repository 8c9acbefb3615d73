// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/LiveVision/internal/api"
	"github.com/Corphon/LiveVision/internal/app"
	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/di"
	"github.com/Corphon/LiveVision/internal/utils"
)

func main() {
	log.Println("🚀 启动 LiveVision 服务器...")

	// 1. 加载基础配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", cfg.Port)

	// 2. 创建必要的目录
	createDirectories(cfg)
	log.Println("✅ 目录结构创建完成")

	// 3. 初始化日志
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "live-vision.log")); err != nil {
		log.Printf("⚠️ 日志文件初始化失败，仅输出到控制台: %v", err)
	}
	defer logger.Close()

	// 4. 初始化所有服务（按依赖顺序）
	container := di.GetContainer()
	if err := app.InitServices(cfg, container); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Printf("✅ 所有服务初始化完成，服务数量: %d", len(container.GetNames()))

	if err := performHealthCheck(container); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	// 5. 设置路由
	server, err := api.SetupRouter(container)
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 6. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	log.Printf("🔗 帧分析: POST http://localhost:%s/vision", cfg.Port)
	log.Printf("🔗 帧流: ws://localhost:%s/ws/vision", cfg.Port)

	setupGracefulShutdown(server, cfg.Port)
}

// performHealthCheck 检查关键服务是否已注册
func performHealthCheck(container *di.Container) error {
	criticalServices := []string{di.ServiceConfig, di.ServiceEmotion, di.ServiceClassifier, di.ServiceVision}

	for _, serviceName := range criticalServices {
		if !container.Has(serviceName) {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}

// setupGracefulShutdown 启动HTTP服务并在收到信号后优雅关闭
func setupGracefulShutdown(server *api.Server, port string) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	// 先关闭帧流，长连接不会阻塞 Shutdown
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ 服务器强制关闭: %v", err)
		return
	}

	log.Println("✅ 服务器优雅关闭完成")
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		cfg.LogDir,
		filepath.Dir(cfg.EmotionConfigPath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}
