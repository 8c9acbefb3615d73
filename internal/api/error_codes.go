// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 帧上传相关错误
	ErrorFrameMissing  = "FRAME_MISSING"
	ErrorFrameTooLarge = "FRAME_TOO_LARGE"
	ErrorFrameInvalid  = "FRAME_INVALID"

	// 分类器配置相关错误
	ErrorEmotionConfigInvalid = "EMOTION_CONFIG_INVALID"
	ErrorEmotionConfigSave    = "EMOTION_CONFIG_SAVE_FAILED"
)
