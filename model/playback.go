package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultTempo      = 120.0
	DefaultScrollRate = ScrollRate(2.0)

	MinScrollRate  = ScrollRate(0.5)
	MaxScrollRate  = ScrollRate(5.0)
	ScrollRateStep = ScrollRate(0.5)
)

// ErrInvalidTempo is returned for tempo values that are not positive finite numbers.
var ErrInvalidTempo = errors.New("tempo must be a positive number of beats per minute")

// PlaybackState 播放状态，Cursor 是歌词子序列中的位置
type PlaybackState struct {
	IsPlaying bool `json:"isPlaying"`
	Cursor    int  `json:"lyricCursor"`
}

// ValidateTempo 校验 BPM
func ValidateTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("%v: %w", bpm, ErrInvalidTempo)
	}
	return nil
}

// Interval converts a tempo to the tick period, 60000ms / bpm.
func Interval(bpm float64) (time.Duration, error) {
	if err := ValidateTempo(bpm); err != nil {
		return 0, err
	}
	d := time.Duration(float64(time.Minute) / bpm)
	if d <= 0 {
		// bpm so large the period rounds to zero
		return 0, fmt.Errorf("%v: %w", bpm, ErrInvalidTempo)
	}
	return d, nil
}

// ScrollRate 滚动速度倍率，仅用于显示，不影响节拍
type ScrollRate float64

// Clamp 限制在 [0.5, 5.0] 并对齐到 0.5 的步长
func (r ScrollRate) Clamp() ScrollRate {
	if math.IsNaN(float64(r)) {
		return DefaultScrollRate
	}
	steps := math.Round(float64(r / ScrollRateStep))
	r = ScrollRate(steps) * ScrollRateStep
	if r < MinScrollRate {
		return MinScrollRate
	}
	if r > MaxScrollRate {
		return MaxScrollRate
	}
	return r
}

// Faster 增加一个步长
func (r ScrollRate) Faster() ScrollRate {
	return (r + ScrollRateStep).Clamp()
}

// Slower 减少一个步长
func (r ScrollRate) Slower() ScrollRate {
	return (r - ScrollRateStep).Clamp()
}

func (r ScrollRate) String() string {
	return fmt.Sprintf("%gx", float64(r))
}
