package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ChordScroll/core/playback"
	"ChordScroll/logger"
	"ChordScroll/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	readLimit      = 4096 // 4KB
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
)

// Client 一个浏览器连接及其独占的播放时钟
type Client struct {
	ID         string
	Hub        *Hub
	Conn       *websocket.Conn
	Send       chan []byte
	Clock      *playback.Clock
	Transcript *model.Transcript

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a session bound to transcript. The clock's state and scroll
// effects are forwarded to Send. Extra clock options are applied after the defaults.
func NewClient(hub *Hub, conn *websocket.Conn, transcript *model.Transcript, opts ...playback.Option) (*Client, error) {
	c := &Client{
		ID:         uuid.New().String(),
		Hub:        hub,
		Conn:       conn,
		Send:       make(chan []byte, sendBufferSize),
		Transcript: transcript,
	}

	clockOpts := append([]playback.Option{
		playback.OnStateChange(func(s playback.State) {
			c.SendMessage(MsgTypeState, s)
		}),
		playback.OnScroll(func(d playback.ScrollDirective) {
			// 缓冲区满时丢弃，下一次高亮变化会重新发出
			c.SendMessage(MsgTypeScroll, d)
		}),
	}, opts...)

	clock, err := playback.New(transcript, clockOpts...)
	if err != nil {
		return nil, err
	}
	c.Clock = clock
	return c, nil
}

// Greet 连接建立后下发歌谱、当前状态以及首个滚动指令
func (c *Client) Greet() {
	c.SendMessage(MsgTypeTranscript, NewTranscriptData(c.Transcript))
	state := c.Clock.State()
	c.SendMessage(MsgTypeState, state)
	if state.ActivePosition >= 0 {
		c.SendMessage(MsgTypeScroll, playback.ScrollDirective{
			Position: state.ActivePosition,
			Block:    playback.ScrollBlockCenter,
			Behavior: playback.ScrollBehaviorSmooth,
		})
	}
}

// SendMessage encodes and queues a message. It never blocks; a full buffer or a
// closed session drops the message.
func (c *Client) SendMessage(msgType MessageType, data interface{}) bool {
	msg, err := Encode(msgType, data)
	if err != nil {
		logger.Error("encode message failed",
			logger.String("session", c.ID),
			logger.String("type", string(msgType)),
			logger.ErrorField(err))
		return false
	}
	return c.trySend(msg)
}

func (c *Client) trySend(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(MsgTypeError, ErrorData{Code: code, Message: message})
}

// close 关闭时钟后再关闭发送通道，保证关闭之后不会再有时钟回调写入
func (c *Client) close() {
	if c.Clock != nil {
		c.Clock.Close()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Closed 会话是否已关闭
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Handle applies one inbound message to the session's clock.
func (c *Client) Handle(msg *WSMessage) {
	var err error
	switch msg.Type {
	case MsgTypeToggle:
		err = c.Clock.Toggle()
	case MsgTypePlay:
		err = c.Clock.Play()
	case MsgTypePause:
		err = c.Clock.Pause()
	case MsgTypeReset:
		err = c.Clock.Reset()
	case MsgTypeScrollFaster:
		err = c.Clock.ScrollFaster()
	case MsgTypeScrollSlower:
		err = c.Clock.ScrollSlower()
	case MsgTypeGetState:
		c.SendMessage(MsgTypeState, c.Clock.State())
	case MsgTypeTempo:
		var data TempoData
		if len(msg.Data) == 0 {
			c.sendError(ErrCodeBadRequest, "tempo requires data.bpm")
			return
		}
		if jerr := json.Unmarshal(msg.Data, &data); jerr != nil {
			c.sendError(ErrCodeBadRequest, jerr.Error())
			return
		}
		err = c.Clock.SetTempo(data.BPM)
	case MsgTypePing:
		c.SendMessage(MsgTypePong, nil)
	default:
		c.sendError(ErrCodeUnknownType, "unknown message type: "+string(msg.Type))
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidTempo):
		c.sendError(ErrCodeInvalidTempo, err.Error())
	case errors.Is(err, playback.ErrClosed):
		logger.Debug("command after session close", logger.String("session", c.ID))
	default:
		logger.Warn("command failed",
			logger.String("session", c.ID),
			logger.String("type", string(msg.Type)),
			logger.ErrorField(err))
	}
}

// ReadPump 读取消息循环，退出时注销会话
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("session", c.ID))
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("session", c.ID))
			c.sendError(ErrCodeBadRequest, "invalid message format")
			continue
		}
		c.Handle(&msg)
	}
}

// WritePump 把时钟产生的状态与滚动指令写给浏览器。会话关闭（Send 被关闭）时
// 发送 close 帧后退出；空闲期间每 pingPeriod 发送一次 ping
func (c *Client) WritePump() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := c.writeFrame(msg); err != nil {
				logger.Debug("websocket write failed",
					logger.String("session", c.ID),
					logger.ErrorField(err))
				return
			}

		case <-keepalive.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameSeparator 分隔同一帧内的多条消息，页面端按行拆分
var frameSeparator = []byte{'\n'}

// writeFrame 写出 first 以及写入时队列里已经积压的消息。
// 一次 tick 产生的 state 与 scroll 通常落在同一帧里
func (c *Client) writeFrame(first []byte) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(first)

	for pending := len(c.Send); pending > 0; pending-- {
		msg, ok := <-c.Send
		if !ok {
			break
		}
		w.Write(frameSeparator)
		w.Write(msg)
	}
	return w.Close()
}
