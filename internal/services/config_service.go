// internal/services/config_service.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/LiveVision/internal/config"
	apperrors "github.com/Corphon/LiveVision/internal/errors"
	"github.com/Corphon/LiveVision/internal/utils"
)

const maxChangeHistory = 50

// ConfigChangeSubscriber 配置变更订阅者接口
type ConfigChangeSubscriber interface {
	OnConfigChanged(oldConfig, newConfig config.EmotionConfig)
}

// ConfigChangeRecord 配置变更记录，令牌已脱敏
type ConfigChangeRecord struct {
	Timestamp time.Time            `json:"timestamp"`
	ChangedBy string               `json:"changed_by"`
	OldValue  config.EmotionConfig `json:"old_value"`
	NewValue  config.EmotionConfig `json:"new_value"`
}

// ConfigService 管理情绪分类器配置的读取、更新和变更记录
type ConfigService struct {
	store  *config.EmotionConfigStore
	logger *utils.Logger

	// 互斥锁保护内部状态
	mu            sync.RWMutex
	subscribers   []ConfigChangeSubscriber
	changeHistory []ConfigChangeRecord
}

// NewConfigService 创建配置服务实例
func NewConfigService(store *config.EmotionConfigStore, logger *utils.Logger) *ConfigService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &ConfigService{
		store:         store,
		logger:        logger.With("config", nil),
		changeHistory: make([]ConfigChangeRecord, 0, maxChangeHistory),
	}
}

// Get 实现 classifier.ConfigSource
func (s *ConfigService) Get() config.EmotionConfig {
	return s.store.Get()
}

// Update 持久化新配置并通知订阅者
func (s *ConfigService) Update(cfg config.EmotionConfig, changedBy string) (config.EmotionConfig, error) {
	old := s.store.Get()
	saved, err := s.store.Update(cfg)
	if err != nil {
		return config.EmotionConfig{}, apperrors.NewProcessingError("failed to save emotion config", err)
	}

	s.mu.Lock()
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		OldValue:  old.Redacted(),
		NewValue:  saved.Redacted(),
	})
	if len(s.changeHistory) > maxChangeHistory {
		s.changeHistory = s.changeHistory[len(s.changeHistory)-maxChangeHistory:]
	}
	subscribers := append([]ConfigChangeSubscriber(nil), s.subscribers...)
	s.mu.Unlock()

	s.logger.Debug("config change recorded", utils.Fields{"changed_by": changedBy})

	for _, sub := range subscribers {
		sub.OnConfigChanged(old, saved)
	}
	return saved, nil
}

// Subscribe 注册配置变更订阅者
func (s *ConfigService) Subscribe(sub ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// History 返回变更记录副本，最新的在最后
func (s *ConfigService) History() []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConfigChangeRecord, len(s.changeHistory))
	copy(out, s.changeHistory)
	return out
}
