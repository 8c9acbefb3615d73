// internal/emotion/labels.go
package emotion

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Emotion 标准情绪标签
type Emotion string

const (
	Happy      Emotion = "happy"
	Joy        Emotion = "joy"
	Excited    Emotion = "excited"
	Smile      Emotion = "smile"
	Sad        Emotion = "sad"
	Angry      Emotion = "angry"
	Fear       Emotion = "fear"
	Disgust    Emotion = "disgust"
	Frustrated Emotion = "frustrated"
	Neutral    Emotion = "neutral"
)

// Canonical 按声明顺序列出全部标签。所有并列判定都遍历此切片而不是 map
var Canonical = []Emotion{
	Happy,
	Joy,
	Excited,
	Smile,
	Sad,
	Angry,
	Fear,
	Disgust,
	Frustrated,
	Neutral,
}

// Bucket 情绪的三分类归并
type Bucket string

const (
	Positive      Bucket = "positive"
	Negative      Bucket = "negative"
	NeutralBucket Bucket = "neutral"
)

var canonicalSet = func() map[Emotion]struct{} {
	set := make(map[Emotion]struct{}, len(Canonical))
	for _, e := range Canonical {
		set[e] = struct{}{}
	}
	return set
}()

var synonyms = map[string]Emotion{
	"positive":    Happy,
	"negative":    Sad,
	"smiling":     Smile,
	"smiley":      Smile,
	"happiness":   Joy,
	"joyful":      Joy,
	"surprised":   Excited,
	"surprise":    Excited,
	"upset":       Sad,
	"frown":       Sad,
	"frowning":    Sad,
	"depressed":   Sad,
	"contempt":    Sad,
	"anger":       Angry,
	"mad":         Angry,
	"afraid":      Fear,
	"fearful":     Fear,
	"frustration": Frustrated,
}

// fold 去空白、NFKC 规范化并转小写
func fold(label string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(label)))
}

// Lookup 把标签解析为标准情绪，第二个返回值表示是否为标准标签或已知同义词
func Lookup(label string) (Emotion, bool) {
	s := fold(label)
	if _, ok := canonicalSet[Emotion(s)]; ok {
		return Emotion(s), true
	}
	if e, ok := synonyms[s]; ok {
		return e, true
	}
	return Neutral, false
}

// Normalize 把任意标签映射到标准集合，无法识别时为 neutral
func Normalize(label string) Emotion {
	e, _ := Lookup(label)
	return e
}

// IsCanonical e 是否属于标准集合
func IsCanonical(e Emotion) bool {
	_, ok := canonicalSet[e]
	return ok
}

// BucketOf 把情绪归入 positive、negative 或 neutral
func BucketOf(e Emotion) Bucket {
	switch e {
	case Happy, Joy, Excited, Smile:
		return Positive
	case Sad, Angry, Fear, Disgust, Frustrated:
		return Negative
	default:
		return NeutralBucket
	}
}
