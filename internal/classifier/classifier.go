// internal/classifier/classifier.go
package classifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/Corphon/LiveVision/internal/utils"
)

// Result 来源标记
const (
	SourceStub     = "stub"
	SourceFallback = "fallback"
	SourceChat     = "nim-chat"
	SourceExternal = "external"
)

const (
	// DefaultTimeout 单次分类调用的超时
	DefaultTimeout = 10 * time.Second

	chatCompletionsMarker = "/v1/chat/completions"
	maxErrorBodyChars     = 500
	chatTemperature       = 0.2
	chatMaxTokens         = 220
)

// Result 单次分类调用的结果。Error、Raw、Counts 可为空，没有结构化计数时 Counts 为 nil
type Result struct {
	Detail emotion.Emotion
	Source string
	Error  *string
	Raw    *string
	Counts emotion.Counts
}

// Classifier 对单张人脸裁剪或整帧分类。实现不返回错误，任何问题都降级为 neutral 的 fallback 结果
type Classifier interface {
	Classify(ctx context.Context, image []byte) Result
}

// ConfigSource 提供当前分类器配置
type ConfigSource interface {
	Get() config.EmotionConfig
}

// StaticConfig 固定配置
type StaticConfig config.EmotionConfig

// Get 实现 ConfigSource
func (s StaticConfig) Get() config.EmotionConfig {
	return config.EmotionConfig(s)
}

// HTTPClassifier 调用配置的外部情绪分类服务
type HTTPClassifier struct {
	configs    ConfigSource
	stabilizer *emotion.Stabilizer
	timeout    time.Duration
	logger     *utils.Logger
	metrics    *utils.APIMetrics

	secureClient   *http.Client
	insecureClient *http.Client
}

// Option HTTPClassifier 选项
type Option func(*HTTPClassifier)

// WithTimeout 覆盖 DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *utils.Logger) Option {
	return func(c *HTTPClassifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics 启用调用指标
func WithMetrics(m *utils.APIMetrics) Option {
	return func(c *HTTPClassifier) {
		c.metrics = m
	}
}

// New 创建 HTTPClassifier。stabilizer 在所有调用间共享，记录每个成功的 chat 或通用端点判定
func New(configs ConfigSource, stabilizer *emotion.Stabilizer, opts ...Option) *HTTPClassifier {
	c := &HTTPClassifier{
		configs:    configs,
		stabilizer: stabilizer,
		timeout:    DefaultTimeout,
		logger:     utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stabilizer == nil {
		c.stabilizer = emotion.NewStabilizer()
	}
	c.logger = c.logger.With("classifier", nil)

	secure := http.DefaultTransport.(*http.Transport).Clone()
	insecure := http.DefaultTransport.(*http.Transport).Clone()
	// 私有端点可能使用非公共CA证书链
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	c.secureClient = &http.Client{Timeout: c.timeout, Transport: secure}
	c.insecureClient = &http.Client{Timeout: c.timeout, Transport: insecure}
	return c
}

// Stabilizer 返回共享的平滑器
func (c *HTTPClassifier) Stabilizer() *emotion.Stabilizer {
	return c.stabilizer
}

// Classify 实现 Classifier
func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) Result {
	start := time.Now()
	cfg := c.configs.Get().Trimmed()

	var res Result
	switch {
	case !cfg.Configured():
		res = Result{Detail: emotion.Neutral, Source: SourceStub}
	case strings.Contains(cfg.Endpoint, chatCompletionsMarker):
		res = c.classifyChat(ctx, cfg, image)
	default:
		res = c.classifyGeneric(ctx, cfg, image)
	}

	if c.metrics != nil {
		c.metrics.RecordClassifierCall(res.Source, time.Since(start))
	}
	if res.Source == SourceFallback && res.Error != nil {
		c.logger.Warn("classifier call degraded to fallback", utils.Fields{
			"endpoint": cfg.Endpoint,
			"error":    *res.Error,
		})
	} else {
		c.logger.Debug("classified", utils.Fields{
			"source":  res.Source,
			"detail":  res.Detail,
			"elapsed": time.Since(start).String(),
		})
	}
	return res
}

func (c *HTTPClassifier) client(cfg config.EmotionConfig) *http.Client {
	if cfg.InsecureSkipVerify {
		return c.insecureClient
	}
	return c.secureClient
}

func (c *HTTPClassifier) classifyChat(ctx context.Context, cfg config.EmotionConfig, image []byte) Result {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	requestBody := map[string]interface{}{
		"model":       cfg.Model,
		"temperature": chatTemperature,
		"max_tokens":  chatMaxTokens,
		"messages": []map[string]interface{}{
			{"role": "system", "content": systemPrompt},
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": userPrompt},
					{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
				},
			},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return fallback(err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fallback(err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setAuth(httpReq, cfg)

	body, errResult := c.do(httpReq, cfg)
	if errResult != nil {
		return *errResult
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fallback(err.Error())
	}

	text := response.text()
	detail := emotion.DetailFromReply(text)
	counts := emotion.ParseCounts(text)
	if counts.HasPositive() {
		detail = counts.Dominant()
	} else {
		counts = nil
	}
	detail = c.stabilizer.Stabilize(detail)

	return Result{
		Detail: detail,
		Source: SourceChat,
		Raw:    &text,
		Counts: counts,
	}
}

func (c *HTTPClassifier) classifyGeneric(ctx context.Context, cfg config.EmotionConfig, image []byte) Result {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="frame"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fallback(err.Error())
	}
	if _, err := part.Write(image); err != nil {
		return fallback(err.Error())
	}
	if cfg.Model != "" {
		if err := writer.WriteField("model", cfg.Model); err != nil {
			return fallback(err.Error())
		}
	}
	if err := writer.Close(); err != nil {
		return fallback(err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, &buf)
	if err != nil {
		return fallback(err.Error())
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	setAuth(httpReq, cfg)

	body, errResult := c.do(httpReq, cfg)
	if errResult != nil {
		return *errResult
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return fallback(err.Error())
	}

	label := firstTruthy(response, "sentiment", "emotion")
	if label == "" {
		label = string(emotion.Neutral)
	}
	detail := c.stabilizer.Stabilize(emotion.Normalize(label))

	return Result{
		Detail: detail,
		Source: SourceExternal,
		Raw:    &label,
	}
}

// do 发送请求并返回响应体。传输失败或 HTTP 状态 >= 400 时返回 fallback 结果
func (c *HTTPClassifier) do(req *http.Request, cfg config.EmotionConfig) ([]byte, *Result) {
	resp, err := c.client(cfg).Do(req)
	if err != nil {
		res := fallback(err.Error())
		return nil, &res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res := fallback(err.Error())
		return nil, &res
	}

	if resp.StatusCode >= http.StatusBadRequest {
		res := fallback(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncateChars(string(body), maxErrorBodyChars)))
		return nil, &res
	}
	return body, nil
}

func setAuth(req *http.Request, cfg config.EmotionConfig) {
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
}

func fallback(msg string) Result {
	return Result{Detail: emotion.Neutral, Source: SourceFallback, Error: &msg}
}

func truncateChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// firstTruthy 按顺序返回第一个存在且非空的字段值（字符串形式）
func firstTruthy(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case bool:
			if t {
				return "True"
			}
		case float64:
			if t != 0 {
				return fmt.Sprint(t)
			}
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// text 返回第一个 choice 的内容。内容可能是字符串或分段列表，分段文本以空格拼接
func (r chatResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	content := r.Choices[0].Message.Content
	if len(content) == 0 || string(content) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var parts []interface{}
	if err := json.Unmarshal(content, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, item := range parts {
			p, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if t, ok := p["text"]; ok {
				if ts, ok := t.(string); ok {
					texts = append(texts, ts)
				} else {
					texts = append(texts, fmt.Sprint(t))
				}
			}
		}
		return strings.Join(texts, " ")
	}

	return string(content)
}
