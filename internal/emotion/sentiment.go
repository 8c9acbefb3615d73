// internal/emotion/sentiment.go
package emotion

import "strings"

var (
	positiveWords = map[string]struct{}{
		"good": {}, "great": {}, "excellent": {}, "love": {},
		"happy": {}, "awesome": {}, "fantastic": {}, "positive": {},
	}
	negativeWords = map[string]struct{}{
		"bad": {}, "terrible": {}, "awful": {}, "hate": {},
		"sad": {}, "angry": {}, "negative": {}, "horrible": {},
	}
)

// TextSentiment 基于词表的短文本情感判断，每个不同的词只计一次
func TextSentiment(text string) Bucket {
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(text) {
		seen[strings.ToLower(strings.Trim(field, ".,!?;:"))] = struct{}{}
	}

	score := 0
	for w := range seen {
		if _, ok := positiveWords[w]; ok {
			score++
		}
		if _, ok := negativeWords[w]; ok {
			score--
		}
	}

	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return NeutralBucket
	}
}
