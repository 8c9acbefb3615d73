// internal/classifier/prompts.go
package classifier

import (
	"strings"

	"github.com/Corphon/LiveVision/internal/emotion"
)

const userPrompt = "Count face emotions in this image and provide JSON only."

// systemPrompt 要求按标准标签输出 emotion_counts，示例中 neutral 排在首位
var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	labels := make([]string, 0, len(emotion.Canonical))
	labels = append(labels, string(emotion.Neutral))
	for _, e := range emotion.Canonical {
		if e != emotion.Neutral {
			labels = append(labels, string(e))
		}
	}

	fields := make([]string, len(labels))
	for i, l := range labels {
		fields[i] = `"` + l + `":0`
	}
	schema := `{"emotion_counts":{` + strings.Join(fields, ",") + `},"dominant_emotion":"neutral"}`

	return strings.Join([]string{
		"Analyze all visible human faces in the image.",
		"Return strict JSON only with this schema: " + schema + ".",
		"Use only these emotion labels as keys.",
		"Counts must be non-negative integers.",
		"dominant_emotion must be one of those labels.",
		"If at least one face is visible, the sum of emotion_counts must be >= 1.",
		"Do not return all-zero counts when a face is visible.",
		"Do not wrap JSON in markdown, code fences, or prose.",
	}, " ")
}
