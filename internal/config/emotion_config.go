// internal/config/emotion_config.go
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Corphon/LiveVision/internal/storage"
	"github.com/Corphon/LiveVision/internal/utils"
)

// EmotionConfig 外部情绪分类器配置
type EmotionConfig struct {
	Endpoint           string `json:"endpoint"`
	Token              string `json:"token"`
	Model              string `json:"model"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`
}

// Trimmed 返回去除首尾空白后的配置
func (c EmotionConfig) Trimmed() EmotionConfig {
	return EmotionConfig{
		Endpoint:           strings.TrimSpace(c.Endpoint),
		Token:              strings.TrimSpace(c.Token),
		Model:              strings.TrimSpace(c.Model),
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// Configured 是否已设置分类器端点
func (c EmotionConfig) Configured() bool {
	return c.Endpoint != ""
}

// Redacted 返回令牌打码后的副本，用于日志
func (c EmotionConfig) Redacted() EmotionConfig {
	out := c
	if len(out.Token) > 4 {
		out.Token = "****" + out.Token[len(out.Token)-4:]
	} else if out.Token != "" {
		out.Token = "****"
	}
	return out
}

// EmotionConfigStore 持有当前分类器配置，更新时写回磁盘
type EmotionConfigStore struct {
	mu            sync.RWMutex
	current       EmotionConfig
	files         *storage.FileStorage
	filename      string
	encryptionKey string
	logger        *utils.Logger
}

// NewEmotionConfigStore 从持久化文件加载配置；文件缺失或损坏时使用 defaults
func NewEmotionConfigStore(path, encryptionKey string, defaults EmotionConfig, logger *utils.Logger) (*EmotionConfigStore, error) {
	files, filename, err := storage.ForFile(path)
	if err != nil {
		return nil, fmt.Errorf("初始化配置存储失败: %w", err)
	}
	if logger == nil {
		logger = utils.GetLogger()
	}

	s := &EmotionConfigStore{
		current:       defaults.Trimmed(),
		files:         files,
		filename:      filename,
		encryptionKey: encryptionKey,
		logger:        logger.With("config", nil),
	}

	if files.FileExists(filename) {
		saved, err := s.load()
		if err != nil {
			s.logger.Warn("ignoring unreadable emotion config, using environment", utils.Fields{"path": path, "error": err})
		} else {
			s.current = saved
		}
	}

	return s, nil
}

func (s *EmotionConfigStore) load() (EmotionConfig, error) {
	var saved EmotionConfig
	if err := s.files.LoadJSONFile(s.filename, &saved); err != nil {
		return EmotionConfig{}, err
	}
	token, err := utils.DecryptSecret(saved.Token, s.encryptionKey)
	if err != nil {
		return EmotionConfig{}, fmt.Errorf("解密令牌失败: %w", err)
	}
	saved.Token = token
	return saved.Trimmed(), nil
}

// Get 返回当前配置的副本
func (s *EmotionConfigStore) Get() EmotionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update 替换当前配置并持久化
func (s *EmotionConfigStore) Update(cfg EmotionConfig) (EmotionConfig, error) {
	cfg = cfg.Trimmed()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(cfg); err != nil {
		return s.current, err
	}
	s.current = cfg
	s.logger.Info("emotion config updated", utils.Fields{
		"endpoint": cfg.Endpoint,
		"model":    cfg.Model,
		"token":    cfg.Redacted().Token,
	})
	return cfg, nil
}

// save 写入磁盘；配置了密钥时令牌加密保存
func (s *EmotionConfigStore) save(cfg EmotionConfig) error {
	onDisk := cfg
	if s.encryptionKey != "" {
		sealed, err := utils.EncryptSecret(cfg.Token, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("加密令牌失败: %w", err)
		}
		onDisk.Token = sealed
	}
	if err := s.files.SaveJSONFile(s.filename, onDisk); err != nil {
		return fmt.Errorf("保存情绪配置失败: %w", err)
	}
	return nil
}
