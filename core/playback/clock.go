package playback

import (
	"errors"
	"sync"
	"time"

	"ChordScroll/logger"
	"ChordScroll/model"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("playback clock closed")

const (
	ScrollBlockCenter    = "center"
	ScrollBehaviorSmooth = "smooth"
)

// State 时钟状态快照
type State struct {
	IsPlaying      bool             `json:"isPlaying"`
	Cursor         int              `json:"lyricCursor"`
	Tempo          float64          `json:"tempo"`
	Interval       time.Duration    `json:"-"`
	IntervalMs     float64          `json:"intervalMs"`
	ScrollRate     model.ScrollRate `json:"scrollRate"`
	ActivePosition int              `json:"activePosition"` // -1 表示没有高亮行
	LyricCount     int              `json:"lyricCount"`
	Line           int              `json:"line"`     // 当前行（从 1 开始），无高亮时为 0
	Progress       float64          `json:"progress"` // 百分比 [0, 100]
}

// ScrollDirective asks the presentation layer to bring a transcript position into view.
type ScrollDirective struct {
	Position int    `json:"position"`
	Block    string `json:"block"`
	Behavior string `json:"behavior"`
}

// Option 配置 Clock
type Option func(*Clock)

// WithTicker replaces the ticker factory, used by tests to drive ticks by hand.
func WithTicker(f TickerFunc) Option {
	return func(c *Clock) { c.newTicker = f }
}

// WithTempo 设置初始 BPM，非法值会被 New 拒绝
func WithTempo(bpm float64) Option {
	return func(c *Clock) { c.tempo = bpm }
}

// WithScrollRate 设置初始滚动倍率
func WithScrollRate(r model.ScrollRate) Option {
	return func(c *Clock) { c.scrollRate = r.Clamp() }
}

// OnStateChange registers a callback invoked with a snapshot after every state change.
func OnStateChange(f func(State)) Option {
	return func(c *Clock) { c.onState = f }
}

// OnScroll registers a callback invoked whenever the active transcript position changes.
func OnScroll(f func(ScrollDirective)) Option {
	return func(c *Clock) { c.onScroll = f }
}

// Clock drives the lyric cursor forward at the configured tempo.
//
// All state is owned by a single goroutine; commands are closures run on it and
// ticks arrive on the same select, so no two mutations ever overlap. Callbacks run
// on that goroutine too and must not block or call back into the Clock.
type Clock struct {
	transcript *model.Transcript
	newTicker  TickerFunc
	onState    func(State)
	onScroll   func(ScrollDirective)

	ops       chan func()
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// owned by the loop goroutine
	state      model.PlaybackState
	tempo      float64
	scrollRate model.ScrollRate
	ticker     Ticker
	tick       <-chan time.Time
	lastPos    int

	final State
}

// New 创建并启动一个时钟（初始为暂停、游标为 0）
func New(t *model.Transcript, opts ...Option) (*Clock, error) {
	c := &Clock{
		transcript: t,
		newTicker:  NewTimeTicker,
		tempo:      model.DefaultTempo,
		scrollRate: model.DefaultScrollRate,
		ops:        make(chan func()),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := model.Interval(c.tempo); err != nil {
		return nil, err
	}
	c.lastPos = c.activePosition()

	go c.run()
	return c, nil
}

func (c *Clock) run() {
	defer close(c.exited)
	defer func() {
		c.state.IsPlaying = false
		c.stop()
		c.final = c.snapshot()
	}()

	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.tick:
			c.advance()
		case <-c.done:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (c *Clock) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(ran) }:
	case <-c.done:
		return ErrClosed
	}
	<-ran
	return nil
}

// start arms the ticker; any previous ticker is stopped first.
func (c *Clock) start() {
	c.stop()
	interval, err := model.Interval(c.tempo)
	if err != nil {
		// tempo is validated on every write, this cannot happen
		logger.Error("refusing to arm ticker", logger.ErrorField(err))
		return
	}
	c.ticker = c.newTicker(interval)
	c.tick = c.ticker.C()
	logger.Debug("playback ticker armed",
		logger.Float64("bpm", c.tempo),
		logger.Duration("interval", interval),
		logger.Int("cursor", c.state.Cursor))
}

// stop cancels the pending ticker. Safe to call when nothing is armed.
func (c *Clock) stop() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tick = nil
	logger.Debug("playback ticker stopped", logger.Int("cursor", c.state.Cursor))
}

func (c *Clock) advance() {
	if !c.state.IsPlaying {
		c.stop()
		return
	}
	last := c.transcript.LyricCount() - 1
	if c.state.Cursor < last {
		c.state.Cursor++
	} else {
		c.state.IsPlaying = false
		c.state.Cursor = 0
		c.stop()
		logger.Debug("playback reached the end", logger.Int("lyrics", c.transcript.LyricCount()))
	}
	c.publish()
}

func (c *Clock) setPlaying(playing bool) {
	if c.state.IsPlaying == playing {
		return
	}
	c.state.IsPlaying = playing
	if playing {
		c.start()
	} else {
		c.stop()
	}
}

func (c *Clock) activePosition() int {
	pos, _ := c.transcript.Position(c.state.Cursor)
	return pos
}

func (c *Clock) snapshot() State {
	interval, _ := model.Interval(c.tempo)
	s := State{
		IsPlaying:      c.state.IsPlaying,
		Cursor:         c.state.Cursor,
		Tempo:          c.tempo,
		Interval:       interval,
		IntervalMs:     float64(interval) / float64(time.Millisecond),
		ScrollRate:     c.scrollRate,
		ActivePosition: c.activePosition(),
		LyricCount:     c.transcript.LyricCount(),
	}
	if s.ActivePosition >= 0 && c.transcript.Len() > 0 {
		s.Line = s.ActivePosition + 1
		s.Progress = float64(s.Line) / float64(c.transcript.Len()) * 100
	}
	return s
}

// publish emits the state snapshot and, if the active line moved, a scroll directive.
func (c *Clock) publish() {
	snap := c.snapshot()
	if c.onState != nil {
		c.onState(snap)
	}
	if snap.ActivePosition == c.lastPos {
		return
	}
	c.lastPos = snap.ActivePosition
	if snap.ActivePosition < 0 || c.onScroll == nil {
		return
	}
	c.onScroll(ScrollDirective{
		Position: snap.ActivePosition,
		Block:    ScrollBlockCenter,
		Behavior: ScrollBehaviorSmooth,
	})
}

// Play starts advancing from the current cursor. No-op while already playing.
func (c *Clock) Play() error {
	return c.do(func() {
		if c.state.IsPlaying {
			return
		}
		c.setPlaying(true)
		c.publish()
	})
}

// Pause stops advancing and keeps the cursor. Idempotent.
func (c *Clock) Pause() error {
	return c.do(func() {
		if !c.state.IsPlaying {
			c.stop()
			return
		}
		c.setPlaying(false)
		c.publish()
	})
}

// Toggle 切换播放/暂停，恢复播放时从当前游标继续
func (c *Clock) Toggle() error {
	return c.do(func() {
		c.setPlaying(!c.state.IsPlaying)
		c.publish()
	})
}

// Reset 停止播放并把游标归零
func (c *Clock) Reset() error {
	return c.do(func() {
		c.state.IsPlaying = false
		c.state.Cursor = 0
		c.stop()
		c.publish()
	})
}

// SetTempo changes the tick period. While playing the ticker is re-armed with the
// new period; otherwise the value is used on the next start.
func (c *Clock) SetTempo(bpm float64) error {
	if _, err := model.Interval(bpm); err != nil {
		return err
	}
	return c.do(func() {
		if bpm == c.tempo {
			return
		}
		c.tempo = bpm
		if c.state.IsPlaying {
			c.start()
		}
		c.publish()
	})
}

// ScrollFaster 滚动倍率加 0.5（上限 5.0）
func (c *Clock) ScrollFaster() error {
	return c.do(func() {
		c.scrollRate = c.scrollRate.Faster()
		c.publish()
	})
}

// ScrollSlower 滚动倍率减 0.5（下限 0.5）
func (c *Clock) ScrollSlower() error {
	return c.do(func() {
		c.scrollRate = c.scrollRate.Slower()
		c.publish()
	})
}

// State returns the current snapshot, or the final one once the clock is closed.
func (c *Clock) State() State {
	var s State
	if err := c.do(func() { s = c.snapshot() }); err != nil {
		<-c.exited
		return c.final
	}
	return s
}

// Transcript 返回时钟绑定的歌谱
func (c *Clock) Transcript() *model.Transcript {
	return c.transcript
}

// Close stops the ticker and the loop goroutine. It returns once both are gone.
func (c *Clock) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	<-c.exited
}
