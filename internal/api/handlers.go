// internal/api/handlers.go
package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/Corphon/LiveVision/internal/services"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/gin-gonic/gin"
)

// 单帧上传上限
const maxFrameBytes = 16 << 20

// Handler 处理HTTP请求
type Handler struct {
	visionService *services.VisionService
	configService *services.ConfigService
	logger        *utils.Logger
	response      *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(visionService *services.VisionService, configService *services.ConfigService, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Handler{
		visionService: visionService,
		configService: configService,
		logger:        logger.With("api", nil),
		response:      NewResponseHelper(),
	}
}

// SentimentRequest 文本情感请求
type SentimentRequest struct {
	Text *string `json:"text"`
}

// EmotionConfigRequest 分类器配置更新请求，缺省字段按空字符串处理
type EmotionConfigRequest struct {
	Endpoint           string `json:"endpoint"`
	Token              string `json:"token"`
	Model              string `json:"model"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
}

// AnalyzeVision 分析上传的一帧图像，返回帧级情绪聚合结果
func (h *Handler) AnalyzeVision(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)

	file, err := c.FormFile("frame")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.response.Error(c, http.StatusRequestEntityTooLarge, ErrorFrameTooLarge, "frame exceeds upload limit")
			return
		}
		h.response.Error(c, http.StatusBadRequest, ErrorFrameMissing, "multipart field 'frame' is required")
		return
	}

	f, err := file.Open()
	if err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorFrameInvalid, "cannot open uploaded frame", err.Error())
		return
	}
	defer f.Close()

	frame, err := io.ReadAll(f)
	if err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorFrameInvalid, "cannot read uploaded frame", err.Error())
		return
	}

	result, err := h.visionService.AnalyzeFrame(c.Request.Context(), frame)
	if err != nil {
		h.response.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AnalyzeSentiment 文本情感分析
func (h *Handler) AnalyzeSentiment(c *gin.Context) {
	var req SentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		h.response.BadRequest(c, "field 'text' is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sentiment": emotion.TextSentiment(*req.Text)})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetEmotionConfig 返回当前分类器配置
func (h *Handler) GetEmotionConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.configService.Get())
}

// UpdateEmotionConfig 更新并持久化分类器配置
func (h *Handler) UpdateEmotionConfig(c *gin.Context) {
	var req EmotionConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.Error(c, http.StatusBadRequest, ErrorEmotionConfigInvalid, "invalid emotion config", err.Error())
		return
	}

	cfg := config.EmotionConfig{
		Endpoint:           req.Endpoint,
		Token:              req.Token,
		Model:              req.Model,
		InsecureSkipVerify: req.InsecureSkipVerify,
	}.Trimmed()

	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			h.response.Error(c, http.StatusBadRequest, ErrorEmotionConfigInvalid, "endpoint must be an http(s) URL")
			return
		}
	}

	saved, err := h.configService.Update(cfg, c.ClientIP())
	if err != nil {
		h.logger.Error("failed to persist emotion config", utils.Fields{"error": err.Error()})
		h.response.Error(c, http.StatusInternalServerError, ErrorEmotionConfigSave, "failed to save emotion config")
		return
	}

	c.JSON(http.StatusOK, saved)
}

// GetEmotionConfigHistory 返回脱敏后的配置变更记录
func (h *Handler) GetEmotionConfigHistory(c *gin.Context) {
	h.response.Success(c, h.configService.History())
}
