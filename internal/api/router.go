// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/di"
	"github.com/Corphon/LiveVision/internal/services"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 路由及其需要随进程关闭的后台组件
type Server struct {
	Engine  *gin.Engine
	Streams *StreamManager
	limiter *RateLimiter
}

// Close 停止流管理器和限流器的后台协程
func (s *Server) Close() {
	s.Streams.Shutdown()
	s.limiter.Stop()
}

// SetupRouter 配置HTTP路由，服务全部从容器获取
func SetupRouter(container *di.Container) (*Server, error) {
	cfg, err := di.Resolve[*config.Config](container, di.ServiceConfig)
	if err != nil {
		return nil, fmt.Errorf("配置未正确初始化: %w", err)
	}
	visionService, err := di.Resolve[*services.VisionService](container, di.ServiceVision)
	if err != nil {
		return nil, fmt.Errorf("视觉服务未正确初始化: %w", err)
	}
	configService, err := di.Resolve[*services.ConfigService](container, di.ServiceEmotion)
	if err != nil {
		return nil, fmt.Errorf("分类器配置服务未正确初始化: %w", err)
	}
	metrics, err := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, fmt.Errorf("指标服务未正确初始化: %w", err)
	}

	logger := utils.GetLogger()
	handler := NewHandler(visionService, configService, logger)
	streams := NewStreamManager(metrics, logger)
	limiter := NewRateLimiter()

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware(metrics))
	r.Use(accessLogMiddleware(logger.With("http", nil)))

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/vision", RateLimitByIP(limiter, cfg.VisionRateLimit, time.Minute), handler.AnalyzeVision)
	r.POST("/sentiment", handler.AnalyzeSentiment)

	emotionGroup := r.Group("/emotion-config")
	{
		emotionGroup.GET("", handler.GetEmotionConfig)
		emotionGroup.POST("", handler.UpdateEmotionConfig)
		emotionGroup.GET("/history", handler.GetEmotionConfigHistory)
	}

	// WebSocket 帧流
	r.GET("/ws/vision", streams.VisionStream(visionService))
	r.GET("/ws/status", func(c *gin.Context) {
		handler.response.Success(c, streams.GetStatus())
	})

	return &Server{Engine: r, Streams: streams, limiter: limiter}, nil
}
