package model

import (
	"errors"
	"fmt"
)

// LineKind 歌词行类型
type LineKind string

const (
	LineKindTitle LineKind = "title" // 标题
	LineKindChord LineKind = "chord" // 和弦
	LineKindLyric LineKind = "lyric" // 歌词
)

// ErrUnknownLineKind is returned when a transcript line carries a kind outside title/chord/lyric.
var ErrUnknownLineKind = errors.New("unknown line kind")

// Valid 判断行类型是否合法
func (k LineKind) Valid() bool {
	switch k {
	case LineKindTitle, LineKindChord, LineKindLyric:
		return true
	default:
		return false
	}
}

// Line 歌谱中的一行，身份由其在 Transcript 中的下标决定
type Line struct {
	Kind LineKind `json:"type" yaml:"type"`
	Text string   `json:"text" yaml:"text"`
}

// Transcript 一首歌的完整歌谱（标题/和弦/歌词），构造后不可变
type Transcript struct {
	lines []Line

	// lyricPositions[i] 是第 i 个歌词行在 lines 中的下标
	lyricPositions []int
}

// NewTranscript copies lines and precomputes the lyric index map.
func NewTranscript(lines []Line) (*Transcript, error) {
	t := &Transcript{
		lines:          make([]Line, len(lines)),
		lyricPositions: make([]int, 0, len(lines)),
	}
	for i, line := range lines {
		if !line.Kind.Valid() {
			return nil, fmt.Errorf("line %d (%q): %w", i+1, line.Kind, ErrUnknownLineKind)
		}
		t.lines[i] = line
		if line.Kind == LineKindLyric {
			t.lyricPositions = append(t.lyricPositions, i)
		}
	}
	return t, nil
}

// MustTranscript 用于编译期内置的歌谱，非法输入直接 panic
func MustTranscript(lines []Line) *Transcript {
	t, err := NewTranscript(lines)
	if err != nil {
		panic(err)
	}
	return t
}

// Len 返回总行数
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.lines)
}

// Line returns the line at transcript position pos.
func (t *Transcript) Line(pos int) (Line, bool) {
	if t == nil || pos < 0 || pos >= len(t.lines) {
		return Line{}, false
	}
	return t.lines[pos], true
}

// Lines 返回所有行的副本
func (t *Transcript) Lines() []Line {
	if t == nil {
		return nil
	}
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Title 返回第一条标题行的文本，没有则返回空串
func (t *Transcript) Title() string {
	if t == nil {
		return ""
	}
	for _, line := range t.lines {
		if line.Kind == LineKindTitle {
			return line.Text
		}
	}
	return ""
}

// LyricCount 返回歌词行数量
func (t *Transcript) LyricCount() int {
	if t == nil {
		return 0
	}
	return len(t.lyricPositions)
}

// LyricPositions 返回歌词下标映射的副本
func (t *Transcript) LyricPositions() []int {
	if t == nil {
		return nil
	}
	out := make([]int, len(t.lyricPositions))
	copy(out, t.lyricPositions)
	return out
}

// Position resolves a lyric cursor to its transcript position.
// Returns (-1, false) when the cursor does not name a lyric line.
func (t *Transcript) Position(cursor int) (int, bool) {
	if t == nil || cursor < 0 || cursor >= len(t.lyricPositions) {
		return -1, false
	}
	return t.lyricPositions[cursor], true
}

// IsActive 判断 pos 处的行是否为当前高亮行
func (t *Transcript) IsActive(pos, cursor int) bool {
	active, ok := t.Position(cursor)
	return ok && active == pos
}
