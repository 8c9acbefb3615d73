// internal/emotion/stabilizer.go
package emotion

import "sync"

const (
	DefaultHistorySize = 12
	DefaultWindowSize  = 6
	minNonNeutral      = 2
)

// Stabilizer 用最近的单脸判定历史抑制单帧 neutral 抖动。
// 并发安全，进程内所有请求共享一个实例
type Stabilizer struct {
	mu       sync.Mutex
	history  []Emotion
	capacity int
	window   int
}

// NewStabilizer 使用默认容量和窗口创建
func NewStabilizer() *Stabilizer {
	return NewStabilizerSize(DefaultHistorySize, DefaultWindowSize)
}

// NewStabilizerSize 指定历史容量和回看窗口，window 不超过 capacity
func NewStabilizerSize(capacity, window int) *Stabilizer {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if window <= 0 || window > capacity {
		window = capacity
	}
	return &Stabilizer{
		history:  make([]Emotion, 0, capacity),
		capacity: capacity,
		window:   window,
	}
}

// Stabilize 记录 detail 并返回应上报的值。最近窗口内至少有两个非中性结果时，
// neutral 会被替换为其中出现最多的非中性情绪
func (s *Stabilizer) Stabilize(detail Emotion) Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == s.capacity {
		copy(s.history, s.history[1:])
		s.history = s.history[:s.capacity-1]
	}
	s.history = append(s.history, detail)

	if detail != Neutral {
		return detail
	}

	recent := s.history
	if len(recent) > s.window {
		recent = recent[len(recent)-s.window:]
	}

	freq := make(map[Emotion]int)
	order := make([]Emotion, 0, len(recent))
	nonNeutral := 0
	for _, e := range recent {
		if e == Neutral {
			continue
		}
		nonNeutral++
		if freq[e] == 0 {
			order = append(order, e)
		}
		freq[e]++
	}
	if nonNeutral < minNonNeutral {
		return detail
	}

	best := order[0]
	for _, e := range order[1:] {
		if freq[e] > freq[best] {
			best = e
		}
	}
	return best
}

// Recent 返回历史记录副本，最早的在前
func (s *Stabilizer) Recent() []Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Emotion, len(s.history))
	copy(out, s.history)
	return out
}

// Len 已记录的判定数
func (s *Stabilizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
