// internal/classifier/classifier_test.go
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/LiveVision/internal/config"
	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/Corphon/LiveVision/internal/utils"
)

func newTestClassifier(cfg config.EmotionConfig, opts ...Option) *HTTPClassifier {
	opts = append([]Option{WithLogger(utils.NewLogger(&bytes.Buffer{}, utils.ERROR))}, opts...)
	return New(StaticConfig(cfg), emotion.NewStabilizer(), opts...)
}

func chatReply(content interface{}) map[string]interface{} {
	return map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	}
}

func TestClassifyUnconfiguredIsStub(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(config.EmotionConfig{})
	for _, img := range [][]byte{nil, []byte("anything"), bytes.Repeat([]byte{0xff}, 1024)} {
		res := c.Classify(context.Background(), img)
		assert.Equal(t, Result{Detail: emotion.Neutral, Source: SourceStub}, res)
	}
	assert.Zero(t, c.Stabilizer().Len())
}

func TestClassifyChatSendsMultimodalRequest(t *testing.T) {
	t.Parallel()

	var got map[string]interface{}
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chatReply(`{"emotion_counts":{"sad":1},"dominant_emotion":"sad"}`))
	}))
	defer srv.Close()

	c := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions", Token: "tok", Model: "vlm"})
	res := c.Classify(context.Background(), []byte{1, 2, 3})

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "vlm", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, float64(220), got["max_tokens"])

	messages := got["messages"].([]interface{})
	require.Len(t, messages, 2)
	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], `"emotion_counts"`)
	assert.Contains(t, system["content"], `"frustrated":0`)

	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,AQID", image["url"])

	assert.Equal(t, SourceChat, res.Source)
	assert.Equal(t, emotion.Sad, res.Detail)
	assert.Equal(t, emotion.Counts{emotion.Sad: 1}, res.Counts)
	require.NotNil(t, res.Raw)
	assert.Nil(t, res.Error)
	assert.Equal(t, []emotion.Emotion{emotion.Sad}, c.Stabilizer().Recent())
}

func TestClassifyChatWithoutTokenOmitsAuth(t *testing.T) {
	t.Parallel()

	var hadAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		json.NewEncoder(w).Encode(chatReply("happy"))
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions"}).
		Classify(context.Background(), []byte("x"))
	assert.False(t, hadAuth)
	assert.Equal(t, emotion.Happy, res.Detail)
	assert.Nil(t, res.Counts)
}

func TestClassifyChatTextWithoutCountsUsesKeywords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply([]interface{}{
			map[string]interface{}{"type": "text", "text": "The person looks"},
			"ignored",
			map[string]interface{}{"type": "text", "text": "scared and anxious."},
		}))
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions"}).
		Classify(context.Background(), []byte("x"))
	assert.Equal(t, emotion.Fear, res.Detail)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "The person looks scared and anxious.", *res.Raw)
	assert.Nil(t, res.Counts)
}

func TestClassifyChatCountsOverrideText(t *testing.T) {
	t.Parallel()

	reply := "Looks happy overall ```json\n{\"emotion_counts\":{\"angry\":2,\"happy\":1}}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply(reply))
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions"}).
		Classify(context.Background(), []byte("x"))
	assert.Equal(t, emotion.Angry, res.Detail)
	assert.Equal(t, emotion.Counts{emotion.Angry: 2, emotion.Happy: 1}, res.Counts)
}

func TestClassifyChatNeutralIsStabilized(t *testing.T) {
	t.Parallel()

	replies := []string{"happy", "happy", "neutral"}
	var i atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply(replies[i.Add(1)-1]))
	}))
	defer srv.Close()

	c := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions"})
	var last Result
	for range replies {
		last = c.Classify(context.Background(), []byte("x"))
	}
	assert.Equal(t, emotion.Happy, last.Detail)
}

func TestClassifyHTTPErrorFallsBack(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("e", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, long)
	}))
	defer srv.Close()

	for _, endpoint := range []string{srv.URL + "/v1/chat/completions", srv.URL + "/classify"} {
		c := newTestClassifier(config.EmotionConfig{Endpoint: endpoint})
		res := c.Classify(context.Background(), []byte("x"))
		assert.Equal(t, emotion.Neutral, res.Detail)
		assert.Equal(t, SourceFallback, res.Source)
		require.NotNil(t, res.Error)
		assert.Equal(t, "HTTP 502: "+strings.Repeat("e", 500), *res.Error)
		assert.Nil(t, res.Raw)
		assert.Nil(t, res.Counts)
		assert.Zero(t, c.Stabilizer().Len(), "failed calls must not touch history")
	}
}

func TestClassifyTransportErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/classify"}, WithTimeout(20*time.Millisecond))
	res := c.Classify(context.Background(), []byte("x"))
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, emotion.Neutral, res.Detail)
	require.NotNil(t, res.Error)
	assert.NotEmpty(t, *res.Error)
}

func TestClassifyMalformedJSONFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/v1/chat/completions"}).
		Classify(context.Background(), []byte("x"))
	assert.Equal(t, SourceFallback, res.Source)
	require.NotNil(t, res.Error)
}

func TestClassifyGenericMultipart(t *testing.T) {
	t.Parallel()

	var model string
	var frame []byte
	var partType, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		model = r.FormValue("model")
		file, header, err := r.FormFile("frame")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		partType = header.Header.Get("Content-Type")
		assert.Equal(t, "frame.jpg", header.Filename)
		frame, _ = io.ReadAll(file)
		json.NewEncoder(w).Encode(map[string]interface{}{"sentiment": "", "emotion": "Surprised"})
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/classify", Token: "t", Model: "m1"}).
		Classify(context.Background(), []byte("jpeg-bytes"))

	assert.Equal(t, "Bearer t", auth)
	assert.Equal(t, "m1", model)
	assert.Equal(t, "image/jpeg", partType)
	assert.Equal(t, []byte("jpeg-bytes"), frame)

	assert.Equal(t, SourceExternal, res.Source)
	assert.Equal(t, emotion.Excited, res.Detail)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "Surprised", *res.Raw)
	assert.Nil(t, res.Counts)
}

func TestClassifyGenericDefaultsToNeutral(t *testing.T) {
	t.Parallel()

	var hasModel bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			_, hasModel = r.MultipartForm.Value["model"]
		}

		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	res := newTestClassifier(config.EmotionConfig{Endpoint: srv.URL + "/classify"}).
		Classify(context.Background(), []byte("x"))
	assert.False(t, hasModel)
	assert.Equal(t, emotion.Neutral, res.Detail)
	assert.Equal(t, SourceExternal, res.Source)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "neutral", *res.Raw)
}

func TestChatResponseText(t *testing.T) {
	t.Parallel()

	var empty chatResponse
	assert.Equal(t, "", empty.text())

	var r chatResponse
	require.NoError(t, json.Unmarshal([]byte(`{"choices":[{"message":{"content":null}}]}`), &r))
	assert.Equal(t, "", r.text())
}

func TestTruncateChars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ab", truncateChars("abc", 2))
	assert.Equal(t, "日本", truncateChars("日本語", 2))
	assert.Equal(t, "abc", truncateChars("abc", 5))
}
