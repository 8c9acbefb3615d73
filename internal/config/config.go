// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 服务启动配置，全部来自环境变量（可选 .env 文件）
type Config struct {
	Port      string
	DataDir   string
	LogDir    string
	LogLevel  string
	DebugMode bool

	// 情绪分类器配置文件路径
	EmotionConfigPath string
	// 配置文件不存在时使用的分类器默认值
	EmotionDefaults EmotionConfig
	// 非空时令牌以加密形式落盘
	EncryptionKey string

	// Pigo 级联文件路径，为空时不做人脸检测（整帧分类）
	FaceCascadePath string

	// /vision 每个IP每分钟允许的请求数，0 表示不限
	VisionRateLimit int
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	dataDir := getEnv("DATA_DIR", "/data")

	cfg := &Config{
		Port:              getEnv("PORT", "8000"),
		DataDir:           dataDir,
		LogDir:            getEnv("LOG_DIR", filepath.Join(dataDir, "logs")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DebugMode:         getEnvBool("DEBUG_MODE", false),
		EmotionConfigPath: getEnv("EMOTION_CONFIG_PATH", filepath.Join(dataDir, "emotion-config.json")),
		EmotionDefaults: EmotionConfig{
			Endpoint:           strings.TrimSpace(os.Getenv("EMOTION_ENDPOINT")),
			Token:              strings.TrimSpace(os.Getenv("EMOTION_TOKEN")),
			Model:              strings.TrimSpace(os.Getenv("EMOTION_MODEL")),
			InsecureSkipVerify: getEnvBool("EMOTION_INSECURE_TLS", false),
		},
		EncryptionKey:   os.Getenv("CONFIG_ENCRYPTION_KEY"),
		FaceCascadePath: getEnv("FACE_CASCADE_PATH", ""),
		VisionRateLimit: getEnvInt("VISION_RATE_LIMIT", 600),
	}

	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量，解析失败时返回默认值
func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
