// internal/emotion/keywords.go
package emotion

import (
	"regexp"
	"strings"
)

// keywordTable 每种情绪的关键词表，按 Canonical 顺序排列
var keywordTable = []struct {
	emotion Emotion
	words   []string
}{
	{Happy, []string{"happy", "happiness", "pleased", "content"}},
	{Joy, []string{"joy", "joyful", "delighted"}},
	{Excited, []string{"excited", "surprised", "surprise", "thrilled"}},
	{Smile, []string{"smile", "smiling", "smiley", "grin"}},
	{Sad, []string{"sad", "upset", "downcast", "depressed", "unhappy", "frown", "frowning"}},
	{Angry, []string{"angry", "anger", "mad", "annoyed", "irritated"}},
	{Fear, []string{"fear", "fearful", "afraid", "scared", "anxious", "worried"}},
	{Disgust, []string{"disgust", "disgusted", "repulsed", "aversion"}},
	{Frustrated, []string{"frustrated", "frustration", "stressed", "tense"}},
	{Neutral, []string{"neutral", "calm", "expressionless", "flat"}},
}

type keywordMatcher struct {
	emotion  Emotion
	patterns []*regexp.Regexp
}

var keywordMatchers = func() []keywordMatcher {
	out := make([]keywordMatcher, 0, len(keywordTable))
	for _, row := range keywordTable {
		m := keywordMatcher{emotion: row.emotion}
		for _, w := range row.words {
			m.patterns = append(m.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
		}
		out = append(out, m)
	}
	return out
}()

var labelPattern = regexp.MustCompile(`(?i)\b(happy|joy|excited|smile|sad|angry|fear|disgust|frustrated|neutral|positive|negative)\b`)

var nonLetters = regexp.MustCompile(`[^a-z]`)

// Scores 统计每种情绪的关键词在文本中以整词出现的次数，结果包含全部标准情绪
func Scores(text string) map[Emotion]int {
	lower := strings.ToLower(text)
	scores := make(map[Emotion]int, len(Canonical))
	for _, e := range Canonical {
		scores[e] = 0
	}
	for _, m := range keywordMatchers {
		for _, p := range m.patterns {
			if p.MatchString(lower) {
				scores[m.emotion]++
			}
		}
	}
	return scores
}

// ExtractFromText 从非结构化的分类输出中选出情绪。明确的非中性信号优先于 neutral
func ExtractFromText(text string) Emotion {
	scores := Scores(text)

	best := Emotion("")
	for _, e := range Canonical {
		if e == Neutral {
			continue
		}
		if best == "" || scores[e] > scores[best] {
			best = e
		}
	}
	if best != "" && scores[best] > 0 {
		return best
	}
	if scores[Neutral] > 0 {
		return Neutral
	}

	match := labelPattern.FindStringSubmatch(text)
	if match == nil {
		return Neutral
	}
	return Normalize(match[1])
}

// DetailFromReply 从模型回复中得出单一情绪。回复只是一个标签（如 "Happy."）时直接采用，
// 否则走关键词打分
func DetailFromReply(text string) Emotion {
	token := nonLetters.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "")
	if token != "" {
		if e, ok := Lookup(token); ok {
			return e
		}
	}
	return ExtractFromText(text)
}
