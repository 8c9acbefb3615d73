// internal/emotion/counts.go
package emotion

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Counts 单次请求内按情绪累计的直方图
type Counts map[Emotion]int

// Add 把 n 累加到 e。非正数忽略，总数在 math.MaxInt 处饱和
func (c Counts) Add(e Emotion, n int) {
	if n <= 0 {
		return
	}
	if c[e] > math.MaxInt-n {
		c[e] = math.MaxInt
		return
	}
	c[e] += n
}

// Merge 合并 other 中的正数项
func (c Counts) Merge(other Counts) {
	for _, e := range Canonical {
		c.Add(e, other[e])
	}
}

// Sum 返回总数
func (c Counts) Sum() int {
	total := 0
	for _, n := range c {
		if total > math.MaxInt-n {
			return math.MaxInt
		}
		total += n
	}
	return total
}

// HasPositive 是否存在大于零的计数
func (c Counts) HasPositive() bool {
	for _, n := range c {
		if n > 0 {
			return true
		}
	}
	return false
}

// Dominant 返回计数最高的情绪，并列时取 Canonical 顺序靠前者。空直方图为 neutral
func (c Counts) Dominant() Emotion {
	best := Emotion("")
	for _, e := range Canonical {
		n, ok := c[e]
		if !ok {
			continue
		}
		if best == "" || n > c[best] {
			best = e
		}
	}
	if best == "" {
		return Neutral
	}
	return best
}

// ParseCounts 从模型输出中提取 "emotion_counts" 对象，输出可能夹杂说明文字或代码块。
// 任何异常都返回空映射，调用方视为没有结构化结果
func ParseCounts(text string) Counts {
	out := Counts{}

	span, ok := firstObject(text)
	if !ok {
		return out
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return out
	}
	raw, ok := payload["emotion_counts"].(map[string]any)
	if !ok {
		return out
	}

	for k, v := range raw {
		n, ok := coerceInt(v)
		if !ok {
			continue
		}
		out.Add(Normalize(k), n)
	}
	return out
}

// firstObject 从第一个 '{' 开始按括号深度截取第一个完整的 {...}，字符串内的括号不做特殊处理
func firstObject(text string) (string, bool) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.IndexByte(cleaned, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(cleaned); i++ {
		switch cleaned[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}
	return "", false
}

// coerceInt 向零截断数值。超出 int 范围时钳制到 math.MaxInt 或 math.MinInt，不回绕
func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		if t >= math.MaxInt {
			return math.MaxInt, true
		}
		if t <= math.MinInt {
			return math.MinInt, true
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return n, true
			}
			return 0, false
		}
		return n, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
