// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/LiveVision/internal/classifier"
	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/di"
	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/Corphon/LiveVision/internal/services"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/Corphon/LiveVision/internal/vision"
)

// InitServices 按依赖顺序创建所有服务并注册到容器
func InitServices(cfg *config.Config, container *di.Container) error {
	logger := utils.GetLogger()
	metrics := utils.NewAPIMetrics()

	// 1. 配置
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceMetrics, metrics)

	// 2. 分类器配置存储
	store, err := config.NewEmotionConfigStore(cfg.EmotionConfigPath, cfg.EncryptionKey, cfg.EmotionDefaults, logger)
	if err != nil {
		return fmt.Errorf("初始化分类器配置失败: %w", err)
	}
	configService := services.NewConfigService(store, logger)
	container.Register(di.ServiceEmotion, configService)

	// 3. 分类器，平滑历史全进程共享一份
	emotionClassifier := classifier.New(configService, emotion.NewStabilizer(),
		classifier.WithLogger(logger),
		classifier.WithMetrics(metrics),
	)
	container.Register(di.ServiceClassifier, emotionClassifier)

	// 4. 人脸定位与视觉服务
	locator, err := NewFaceLocator(cfg.FaceCascadePath, logger)
	if err != nil {
		return err
	}
	container.Register(di.ServiceVision, services.NewVisionService(locator, emotionClassifier, metrics, logger))

	current := configService.Get()
	logger.Info("services initialized", utils.Fields{
		"classifier_configured": current.Configured(),
		"endpoint":              current.Endpoint,
		"face_detection":        cfg.FaceCascadePath != "",
	})
	return nil
}

// NewFaceLocator 加载人脸级联文件；路径为空时返回 NoopLocator（整帧分类）
func NewFaceLocator(cascadePath string, logger *utils.Logger) (vision.FaceLocator, error) {
	if cascadePath == "" {
		logger.Warn("FACE_CASCADE_PATH not set, frames are classified whole", nil)
		return vision.NoopLocator{}, nil
	}
	locator, err := vision.NewPigoLocator(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("加载人脸检测模型失败: %w", err)
	}
	return locator, nil
}
