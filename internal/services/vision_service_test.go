// internal/services/vision_service_test.go
package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/LiveVision/internal/classifier"
	"github.com/Corphon/LiveVision/internal/emotion"
	apperrors "github.com/Corphon/LiveVision/internal/errors"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/Corphon/LiveVision/internal/vision"
)

type fixedLocator []vision.Box

func (f fixedLocator) Locate(image.Image) []vision.Box { return f }

// scriptedClassifier replays results in order and records the image sizes it saw.
type scriptedClassifier struct {
	results []classifier.Result
	calls   int
	sizes   []int
}

func (s *scriptedClassifier) Classify(_ context.Context, img []byte) classifier.Result {
	s.sizes = append(s.sizes, len(img))
	res := s.results[s.calls%len(s.results)]
	s.calls++
	return res
}

func strPtr(s string) *string { return &s }

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))))
	return buf.Bytes()
}

func newService(locator vision.FaceLocator, c classifier.Classifier) *VisionService {
	return NewVisionService(locator, c, utils.NewAPIMetrics(), utils.NewLogger(&bytes.Buffer{}, utils.ERROR))
}

func TestAnalyzeFrameRejectsEmptyInput(t *testing.T) {
	svc := newService(nil, &scriptedClassifier{results: []classifier.Result{{}}})
	_, err := svc.AnalyzeFrame(context.Background(), nil)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestAnalyzeFrameFullFrameCounts(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{{
		Detail: emotion.Sad,
		Source: classifier.SourceChat,
		Raw:    strPtr(`{"emotion_counts":{"sad":3,"angry":1}}`),
		Counts: emotion.Counts{emotion.Sad: 3, emotion.Angry: 1},
	}}}
	frame := []byte("opaque jpeg bytes")
	got, err := newService(fixedLocator{}, c).AnalyzeFrame(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, 4, got.FaceCount)
	assert.Equal(t, emotion.Sad, got.EmotionDetail)
	assert.Equal(t, emotion.Negative, got.Sentiment)
	assert.Equal(t, CountsSourceModelFullFrame, got.Debug.CountsSource)
	assert.Equal(t, emotion.Counts{emotion.Sad: 3, emotion.Angry: 1}, got.EmotionCounts)
	assert.Equal(t, len(frame), got.Bytes)
	assert.Equal(t, []int{len(frame)}, c.sizes, "whole frame is classified once")
	assert.Equal(t, classifier.SourceChat, got.SentimentSource)
	assert.Nil(t, got.SentimentError)
}

func TestAnalyzeFrameFullFrameFallback(t *testing.T) {
	errMsg := "HTTP 500: boom"
	c := &scriptedClassifier{results: []classifier.Result{{
		Detail: emotion.Neutral,
		Source: classifier.SourceFallback,
		Error:  &errMsg,
	}}}
	got, err := newService(nil, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, 1, got.FaceCount)
	assert.Equal(t, emotion.Counts{emotion.Neutral: 1}, got.EmotionCounts)
	assert.Equal(t, CountsSourceFallbackFullFrame, got.Debug.CountsSource)
	assert.Equal(t, emotion.NeutralBucket, got.Sentiment)
	require.NotNil(t, got.SentimentError)
	assert.Equal(t, errMsg, *got.SentimentError)
	assert.Nil(t, got.EmotionRaw)
}

func TestAnalyzeFramePerFaceFallback(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{
		{Detail: emotion.Happy, Source: classifier.SourceExternal, Raw: strPtr("happy")},
	}}
	locator := fixedLocator{{X: 0, Y: 0, W: 20, H: 20}, {X: 30, Y: 30, W: 20, H: 20}}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, emotion.Counts{emotion.Happy: 2}, got.EmotionCounts)
	assert.Equal(t, CountsSourceFallbackPerFace, got.Debug.CountsSource)
	assert.Equal(t, emotion.Happy, got.EmotionDetail)
	assert.Equal(t, emotion.Positive, got.Sentiment)
	assert.Equal(t, 2, got.FaceCount)
	assert.Equal(t, 2, got.Debug.DetectedFaces)
	assert.Equal(t, 2, got.Debug.AnalyzedFaces)
	require.NotNil(t, got.EmotionRaw)
	assert.Equal(t, "happy | happy", *got.EmotionRaw)
}

func TestAnalyzeFramePerFaceModelCountsWin(t *testing.T) {
	lastErr := "timeout"
	c := &scriptedClassifier{results: []classifier.Result{
		{Detail: emotion.Angry, Source: classifier.SourceChat, Counts: emotion.Counts{emotion.Angry: 1}},
		{Detail: emotion.Neutral, Source: classifier.SourceFallback, Error: &lastErr},
	}}
	locator := fixedLocator{{X: 0, Y: 0, W: 10, H: 10}, {X: 10, Y: 10, W: 10, H: 10}}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, emotion.Counts{emotion.Angry: 1, emotion.Neutral: 1}, got.EmotionCounts)
	assert.Equal(t, CountsSourceModelPerFace, got.Debug.CountsSource)
	assert.Equal(t, emotion.Angry, got.EmotionDetail, "first in canonical order among equals")
	// source and error come from the last face
	assert.Equal(t, classifier.SourceFallback, got.SentimentSource)
	require.NotNil(t, got.SentimentError)
	assert.Equal(t, lastErr, *got.SentimentError)
}

func TestAnalyzeFrameCapsAnalyzedFaces(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{
		{Detail: emotion.Sad, Source: classifier.SourceExternal, Raw: strPtr("sad")},
	}}
	locator := make(fixedLocator, 6)
	for i := range locator {
		locator[i] = vision.Box{X: i * 10, Y: 0, W: 10, H: 10}
	}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, 6, got.FaceCount, "face_count reports every detected face")
	assert.Equal(t, 6, got.Debug.DetectedFaces)
	assert.Equal(t, vision.MaxAnalyzedFaces, got.Debug.AnalyzedFaces)
	assert.Equal(t, vision.MaxAnalyzedFaces, c.calls)
	assert.Equal(t, emotion.Counts{emotion.Sad: 4}, got.EmotionCounts)
	assert.Equal(t, "sad | sad | sad | sad", *got.EmotionRaw)
}

func TestAnalyzeFrameFacesOutsideFrameStayPerFace(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{{Detail: emotion.Sad, Source: classifier.SourceExternal}}}
	locator := fixedLocator{{X: 100, Y: 100, W: 20, H: 20}, {X: 200, Y: 0, W: 10, H: 10}}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, 0, c.calls, "no crop means no classifier call")
	assert.Equal(t, 2, got.FaceCount)
	assert.Equal(t, 2, got.Debug.DetectedFaces)
	assert.Equal(t, 0, got.Debug.AnalyzedFaces)
	assert.Equal(t, CountsSourceNone, got.Debug.CountsSource)
	assert.Equal(t, emotion.Counts{}, got.EmotionCounts)
	assert.Equal(t, emotion.Neutral, got.EmotionDetail)
	assert.Equal(t, emotion.NeutralBucket, got.Sentiment)
	assert.Equal(t, classifier.SourceChat, got.SentimentSource)
	assert.Nil(t, got.SentimentError)
	assert.Nil(t, got.EmotionRaw)
}

func TestAnalyzeFramePartialCropsKeepDetectedCount(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{{Detail: emotion.Happy, Source: classifier.SourceExternal}}}
	locator := fixedLocator{{X: 0, Y: 0, W: 20, H: 20}, {X: 500, Y: 500, W: 20, H: 20}}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 2, got.FaceCount)
	assert.Equal(t, 1, got.Debug.AnalyzedFaces)
	assert.Equal(t, emotion.Counts{emotion.Happy: 1}, got.EmotionCounts)
	assert.Equal(t, CountsSourceFallbackPerFace, got.Debug.CountsSource)
}

func TestAnalyzeFrameUndecodableFrameUsesWholeFrame(t *testing.T) {
	c := &scriptedClassifier{results: []classifier.Result{{Detail: emotion.Joy, Source: classifier.SourceExternal}}}
	locator := fixedLocator{{X: 0, Y: 0, W: 10, H: 10}}
	got, err := newService(locator, c).AnalyzeFrame(context.Background(), []byte("garbage"))
	require.NoError(t, err)

	assert.Equal(t, 0, got.Debug.DetectedFaces)
	assert.Equal(t, CountsSourceFallbackFullFrame, got.Debug.CountsSource)
	assert.Equal(t, emotion.Joy, got.EmotionDetail)
	assert.Equal(t, emotion.Positive, got.Sentiment)
}

func TestAnalyzeFrameWithStubClassifier(t *testing.T) {
	stub := classifier.New(classifier.StaticConfig{}, emotion.NewStabilizer())
	got, err := newService(nil, stub).AnalyzeFrame(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.Equal(t, classifier.SourceStub, got.SentimentSource)
	assert.Equal(t, emotion.Neutral, got.EmotionDetail)
	assert.Equal(t, emotion.Counts{emotion.Neutral: 1}, got.EmotionCounts)
	assert.Nil(t, got.SentimentError)
}
