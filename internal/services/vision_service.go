// internal/services/vision_service.go
package services

import (
	"context"
	"strings"

	"github.com/Corphon/LiveVision/internal/classifier"
	"github.com/Corphon/LiveVision/internal/emotion"
	apperrors "github.com/Corphon/LiveVision/internal/errors"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/Corphon/LiveVision/internal/vision"
)

// counts_source 取值
const (
	CountsSourceModelPerFace      = "model-per-face"
	CountsSourceFallbackPerFace   = "fallback-per-face"
	CountsSourceModelFullFrame    = "model-full-frame"
	CountsSourceFallbackFullFrame = "fallback-full-frame"
	CountsSourceNone              = "none"
)

const (
	maxRawFragments = 4
	rawSeparator    = " | "
)

// FrameDebug 诊断信息
type FrameDebug struct {
	DetectedFaces int    `json:"detected_faces"`
	AnalyzedFaces int    `json:"analyzed_faces"`
	CountsSource  string `json:"counts_source"`
}

// FrameAnalysis 单帧分析结果
type FrameAnalysis struct {
	FaceCount       int             `json:"face_count"`
	Bytes           int             `json:"bytes"`
	Sentiment       emotion.Bucket  `json:"sentiment"`
	EmotionDetail   emotion.Emotion `json:"emotion_detail"`
	EmotionCounts   emotion.Counts  `json:"emotion_counts"`
	EmotionRaw      *string         `json:"emotion_raw"`
	SentimentSource string          `json:"sentiment_source"`
	SentimentError  *string         `json:"sentiment_error"`
	Debug           FrameDebug      `json:"debug"`
}

// VisionService 把人脸定位、逐脸分类和帧级聚合串成一条流水线
type VisionService struct {
	locator    vision.FaceLocator
	classifier classifier.Classifier
	metrics    *utils.APIMetrics
	logger     *utils.Logger
}

// NewVisionService 创建视觉服务。locator 为 nil 时所有帧走整帧分类
func NewVisionService(locator vision.FaceLocator, c classifier.Classifier, metrics *utils.APIMetrics, logger *utils.Logger) *VisionService {
	if locator == nil {
		locator = vision.NoopLocator{}
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &VisionService{
		locator:    locator,
		classifier: c,
		metrics:    metrics,
		logger:     logger.With("vision", nil),
	}
}

// AnalyzeFrame 分析一帧图像。只有空输入会返回错误，分类失败体现在 SentimentError 中
func (s *VisionService) AnalyzeFrame(ctx context.Context, frame []byte) (*FrameAnalysis, error) {
	if len(frame) == 0 {
		return nil, apperrors.NewValidationError("frame is empty", nil)
	}

	crops, detected := s.faceCrops(frame)

	var result *FrameAnalysis
	if detected > 0 {
		result = s.aggregateFaces(ctx, detected, crops)
	} else {
		result = s.aggregateFullFrame(ctx, frame)
	}
	result.Bytes = len(frame)
	result.Debug.DetectedFaces = detected
	result.Debug.AnalyzedFaces = len(crops)

	if s.metrics != nil {
		s.metrics.RecordFrame(result.Debug.CountsSource, string(result.EmotionDetail), detected)
	}
	s.logger.Debug("frame analyzed", utils.Fields{
		"bytes":         result.Bytes,
		"faces":         detected,
		"emotion":       result.EmotionDetail,
		"counts_source": result.Debug.CountsSource,
	})
	return result, nil
}

// faceCrops 定位人脸并裁剪前 MaxAnalyzedFaces 个，返回裁剪结果与检测总数。无法解码时检测数为 0，调用方退回整帧分类
func (s *VisionService) faceCrops(frame []byte) ([][]byte, int) {
	img, err := vision.Decode(frame)
	if err != nil {
		s.logger.Debug("frame not decodable, classifying whole frame", utils.Fields{"error": err.Error()})
		return nil, 0
	}

	boxes := s.locator.Locate(img)
	detected := len(boxes)
	if len(boxes) > vision.MaxAnalyzedFaces {
		boxes = boxes[:vision.MaxAnalyzedFaces]
	}

	crops := make([][]byte, 0, len(boxes))
	for _, box := range boxes {
		crop, err := vision.CropJPEG(img, box)
		if err != nil {
			s.logger.Warn("face crop failed", utils.Fields{"error": err.Error(), "box": box})
			continue
		}
		crops = append(crops, crop)
	}
	return crops, detected
}

// aggregateFaces 合并逐脸结果。face_count 为检测到的人脸数，所有裁剪失败时保持 none
func (s *VisionService) aggregateFaces(ctx context.Context, detected int, crops [][]byte) *FrameAnalysis {
	counts := emotion.Counts{}
	countsSource := CountsSourceNone
	fragments := make([]string, 0, maxRawFragments)

	last := classifier.Result{Source: classifier.SourceChat}
	// 逐个串行调用，保持平滑历史的写入顺序
	for _, crop := range crops {
		res := s.classifier.Classify(ctx, crop)
		last = res

		if res.Counts.HasPositive() {
			counts.Merge(res.Counts)
			countsSource = CountsSourceModelPerFace
		} else {
			counts.Add(res.Detail, 1)
			if countsSource != CountsSourceModelPerFace {
				countsSource = CountsSourceFallbackPerFace
			}
		}

		if res.Raw != nil && *res.Raw != "" && len(fragments) < maxRawFragments {
			fragments = append(fragments, *res.Raw)
		}
	}

	var raw *string
	if len(fragments) > 0 {
		joined := strings.Join(fragments, rawSeparator)
		raw = &joined
	}

	return finish(detected, counts, countsSource, raw, last)
}

func (s *VisionService) aggregateFullFrame(ctx context.Context, frame []byte) *FrameAnalysis {
	res := s.classifier.Classify(ctx, frame)

	if res.Counts.HasPositive() {
		counts := emotion.Counts{}
		counts.Merge(res.Counts)
		faceCount := counts.Sum()
		if faceCount < 1 {
			faceCount = 1
		}
		return finish(faceCount, counts, CountsSourceModelFullFrame, res.Raw, res)
	}

	counts := emotion.Counts{res.Detail: 1}
	return finish(1, counts, CountsSourceFallbackFullFrame, res.Raw, res)
}

func finish(faceCount int, counts emotion.Counts, countsSource string, raw *string, last classifier.Result) *FrameAnalysis {
	dominant := counts.Dominant()
	return &FrameAnalysis{
		FaceCount:       faceCount,
		Sentiment:       emotion.BucketOf(dominant),
		EmotionDetail:   dominant,
		EmotionCounts:   counts,
		EmotionRaw:      raw,
		SentimentSource: last.Source,
		SentimentError:  last.Error,
		Debug:           FrameDebug{CountsSource: countsSource},
	}
}
