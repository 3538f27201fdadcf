package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"ChordScroll/core/playback"
	"ChordScroll/logger"
	"ChordScroll/model"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	eventBufferSize = 64
	frameInterval   = 40 * time.Millisecond

	headerHeight = 1
	footerHeight = 2
)

type stateMsg playback.State

type scrollMsg playback.ScrollDirective

type frameMsg struct{}

// Model 终端歌谱视图，持有一个播放时钟
type Model struct {
	transcript *model.Transcript
	clock      *playback.Clock
	events     chan tea.Msg

	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool

	state     playback.State
	target    int
	animating bool
	err       error
}

// New creates the model and its clock. Clock callbacks never block: when the
// event buffer is full the event is dropped and the next one carries fresh state.
func New(t *model.Transcript, opts ...playback.Option) (*Model, error) {
	m := &Model{
		transcript: t,
		events:     make(chan tea.Msg, eventBufferSize),
		help:       help.New(),
		keys:       defaultKeyMap(),
	}

	clockOpts := append([]playback.Option{
		playback.OnStateChange(func(s playback.State) { m.push(stateMsg(s)) }),
		playback.OnScroll(func(d playback.ScrollDirective) { m.push(scrollMsg(d)) }),
	}, opts...)

	clock, err := playback.New(t, clockOpts...)
	if err != nil {
		return nil, err
	}
	m.clock = clock
	m.state = clock.State()
	return m, nil
}

func (m *Model) push(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		logger.Debug("tui event dropped", logger.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Close 释放时钟
func (m *Model) Close() {
	m.clock.Close()
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		height := msg.Height - headerHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.viewport.SetContent(m.render())
		if m.state.ActivePosition >= 0 {
			m.viewport.SetYOffset(centerOffset(m.state.ActivePosition, m.viewport.Height, m.transcript.Len()))
		}
		return m, nil

	case stateMsg:
		m.state = playback.State(msg)
		m.err = nil
		if m.ready {
			m.viewport.SetContent(m.render())
		}
		return m, waitForEvent(m.events)

	case scrollMsg:
		return m, tea.Batch(m.scrollTo(playback.ScrollDirective(msg)), waitForEvent(m.events))

	case frameMsg:
		return m, m.stepFrame()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		err = m.clock.Toggle()
	case key.Matches(msg, m.keys.Reset):
		err = m.clock.Reset()
	case key.Matches(msg, m.keys.TempoUp):
		err = m.clock.SetTempo(m.clock.State().Tempo + tempoStep)
	case key.Matches(msg, m.keys.TempoDown):
		err = m.clock.SetTempo(m.clock.State().Tempo - tempoStep)
	case key.Matches(msg, m.keys.ScrollUp):
		err = m.clock.ScrollFaster()
	case key.Matches(msg, m.keys.ScrollDown):
		err = m.clock.ScrollSlower()
	default:
		return nil
	}
	if err != nil {
		m.err = err
		if !errors.Is(err, model.ErrInvalidTempo) {
			logger.Warn("tui command failed", logger.String("key", msg.String()), logger.ErrorField(err))
		}
	}
	return nil
}

// scrollTo 将视口目标设为使 d.Position 居中；位置不在内容内则忽略
func (m *Model) scrollTo(d playback.ScrollDirective) tea.Cmd {
	if !m.ready || d.Position < 0 || d.Position >= m.transcript.Len() {
		return nil
	}
	m.target = centerOffset(d.Position, m.viewport.Height, m.transcript.Len())
	if d.Behavior != playback.ScrollBehaviorSmooth {
		m.viewport.SetYOffset(m.target)
		return nil
	}
	if m.animating {
		return nil
	}
	m.animating = true
	return nextFrame()
}

func (m *Model) stepFrame() tea.Cmd {
	prev := m.viewport.YOffset
	m.viewport.SetYOffset(stepToward(prev, m.target, m.state.ScrollRate))
	if m.viewport.YOffset == m.target || m.viewport.YOffset == prev {
		m.animating = false
		return nil
	}
	return nextFrame()
}

// centerOffset 返回使第 pos 行位于高度为 height 的视口中央的偏移量
func centerOffset(pos, height, total int) int {
	offset := pos - height/2
	if limit := total - height; offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

// stepToward moves cur toward target by ceil(rate) rows per frame.
func stepToward(cur, target int, rate model.ScrollRate) int {
	step := int(math.Ceil(float64(rate.Clamp())))
	switch {
	case target > cur+step:
		return cur + step
	case target < cur-step:
		return cur - step
	default:
		return target
	}
}

func (m *Model) render() string {
	var b strings.Builder
	for i, line := range m.transcript.Lines() {
		if i > 0 {
			b.WriteByte('\n')
		}
		text := strings.ReplaceAll(line.Text, "\n", " ")
		b.WriteString(lineStyle(line.Kind, m.transcript.IsActive(i, m.state.Cursor)).Render(text))
	}
	return b.String()
}

func (m *Model) status() string {
	icon := "⏸"
	if m.state.IsPlaying {
		icon = "▶"
	}
	s := fmt.Sprintf("%s %g BPM · line %d/%d · %.0f%% · scroll %s",
		icon, m.state.Tempo, m.state.Line, m.transcript.Len(), m.state.Progress, m.state.ScrollRate)
	if m.err != nil {
		return statusStyle.Render(s) + "  " + errorStyle.Render(m.err.Error())
	}
	return statusStyle.Render(s)
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	title := m.transcript.Title()
	if title == "" {
		title = "ChordScroll"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		m.viewport.View(),
		m.status(),
		m.help.View(m.keys),
	)
}

// Run 在终端中运行，直到用户退出
func Run(t *model.Transcript, opts ...playback.Option) error {
	m, err := New(t, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
