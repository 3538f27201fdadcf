package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ChordScroll/core/playback"
	"ChordScroll/model"

	"github.com/gorilla/websocket"
)

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type manualTickers struct {
	armed chan *manualTicker
}

func newManualTickers() *manualTickers {
	return &manualTickers{armed: make(chan *manualTicker, 8)}
}

func (m *manualTickers) factory(time.Duration) playback.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	m.armed <- t
	return t
}

func testTranscript() *model.Transcript {
	return model.MustTranscript([]model.Line{
		{Kind: model.LineKindTitle, Text: "T"},
		{Kind: model.LineKindChord, Text: "C"},
		{Kind: model.LineKindLyric, Text: "one"},
		{Kind: model.LineKindChord, Text: "G"},
		{Kind: model.LineKindLyric, Text: "two"},
	})
}

func decode(t *testing.T, raw []byte) (*WSMessage, map[string]interface{}) {
	t.Helper()
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := map[string]interface{}{}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return &msg, data
}

func next(t *testing.T, c *Client) (*WSMessage, map[string]interface{}) {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatalf("send channel closed")
		}
		return decode(t, raw)
	case <-time.After(time.Second):
		t.Fatalf("no message queued")
	}
	return nil, nil
}

func newTestClient(t *testing.T) (*Client, *manualTickers) {
	t.Helper()
	tickers := newManualTickers()
	c, err := NewClient(nil, nil, testTranscript(), playback.WithTicker(tickers.factory))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.close)
	return c, tickers
}

func TestGreetSendsTranscriptStateAndScroll(t *testing.T) {
	c, _ := newTestClient(t)
	c.Greet()

	msg, data := next(t, c)
	if msg.Type != MsgTypeTranscript || data["title"] != "T" {
		t.Fatalf("expected transcript first, got %s %v", msg.Type, data)
	}
	if lines := data["lines"].([]interface{}); len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}

	msg, data = next(t, c)
	if msg.Type != MsgTypeState || data["isPlaying"] != false || data["activePosition"] != float64(2) {
		t.Fatalf("unexpected state %s %v", msg.Type, data)
	}

	msg, data = next(t, c)
	if msg.Type != MsgTypeScroll || data["position"] != float64(2) || data["block"] != "center" {
		t.Fatalf("unexpected scroll %s %v", msg.Type, data)
	}
}

func TestHandleTickForwardsStateAndScroll(t *testing.T) {
	c, tickers := newTestClient(t)

	c.Handle(&WSMessage{Type: MsgTypeToggle})
	msg, data := next(t, c)
	if msg.Type != MsgTypeState || data["isPlaying"] != true {
		t.Fatalf("expected playing state, got %s %v", msg.Type, data)
	}

	tk := <-tickers.armed
	tk.ch <- time.Now()

	msg, data = next(t, c)
	if msg.Type != MsgTypeState || data["lyricCursor"] != float64(1) {
		t.Fatalf("expected cursor 1, got %s %v", msg.Type, data)
	}
	msg, data = next(t, c)
	if msg.Type != MsgTypeScroll || data["position"] != float64(4) || data["behavior"] != "smooth" {
		t.Fatalf("expected scroll to 4, got %s %v", msg.Type, data)
	}
}

func TestHandleTempo(t *testing.T) {
	c, _ := newTestClient(t)

	c.Handle(&WSMessage{Type: MsgTypeTempo, Data: json.RawMessage(`{"bpm":60}`)})
	msg, data := next(t, c)
	if msg.Type != MsgTypeState || data["tempo"] != float64(60) || data["intervalMs"] != float64(1000) {
		t.Fatalf("expected tempo 60, got %s %v", msg.Type, data)
	}

	c.Handle(&WSMessage{Type: MsgTypeTempo, Data: json.RawMessage(`{"bpm":0}`)})
	msg, data = next(t, c)
	if msg.Type != MsgTypeError || data["code"] != ErrCodeInvalidTempo {
		t.Fatalf("expected invalid_tempo error, got %s %v", msg.Type, data)
	}

	c.Handle(&WSMessage{Type: MsgTypeTempo})
	msg, data = next(t, c)
	if msg.Type != MsgTypeError || data["code"] != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %s %v", msg.Type, data)
	}

	if got := c.Clock.State().Tempo; got != 60 {
		t.Fatalf("rejected tempo must not change state, got %v", got)
	}
}

func TestHandleUnknownAndPing(t *testing.T) {
	c, _ := newTestClient(t)

	c.Handle(&WSMessage{Type: "dance"})
	msg, data := next(t, c)
	if msg.Type != MsgTypeError || data["code"] != ErrCodeUnknownType {
		t.Fatalf("expected unknown_type, got %s %v", msg.Type, data)
	}

	c.Handle(&WSMessage{Type: MsgTypePing})
	if msg, _ := next(t, c); msg.Type != MsgTypePong {
		t.Fatalf("expected pong, got %s", msg.Type)
	}
}

func TestSendMessageDropsWhenFull(t *testing.T) {
	c, _ := newTestClient(t)
	for i := 0; i < sendBufferSize; i++ {
		if !c.SendMessage(MsgTypePong, nil) {
			t.Fatalf("message %d dropped before buffer was full", i)
		}
	}
	if c.SendMessage(MsgTypePong, nil) {
		t.Fatalf("expected drop on full buffer")
	}
}

func TestHubLifecycle(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c, err := NewClient(hub, nil, testTranscript())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	hub.Register(c)

	deadline := time.Now().Add(time.Second)
	for hub.Count() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("client not registered")
	}

	if err := hub.Broadcast(MsgTypeReloaded, ReloadedData{Title: "New", Lines: 3}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	msg, data := next(t, c)
	if msg.Type != MsgTypeReloaded || data["title"] != "New" {
		t.Fatalf("unexpected notice %s %v", msg.Type, data)
	}

	_ = c.Clock.Play()
	hub.Stop()

	if hub.Count() != 0 {
		t.Fatalf("expected no sessions after stop")
	}
	if err := c.Clock.Toggle(); !errors.Is(err, playback.ErrClosed) {
		t.Fatalf("session clock must be closed, got %v", err)
	}
	// drain whatever was queued; the channel must end closed
	for {
		select {
		case _, ok := <-c.Send:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("send channel was not closed")
		}
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c, err := NewClient(hub, nil, testTranscript())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	hub.Register(c)
	hub.Unregister(c)

	deadline := time.Now().Add(time.Second)
	for !c.Closed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", hub.Count())
	}
	if c.SendMessage(MsgTypePong, nil) {
		t.Fatalf("closed session must drop messages")
	}
}

func TestWritePumpBatchesQueuedMessagesAndClosesCleanly(t *testing.T) {
	clients := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c, err := NewClient(nil, conn, testTranscript())
		if err != nil {
			t.Errorf("NewClient: %v", err)
			return
		}
		// 在写循环启动前排队，三条消息应合并成一帧
		c.SendMessage(MsgTypePong, nil)
		c.SendMessage(MsgTypeState, c.Clock.State())
		c.SendMessage(MsgTypePong, nil)
		go c.WritePump()
		clients <- c
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	c := <-clients

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	parts := bytes.Split(frame, []byte{'\n'})
	if len(parts) != 3 {
		t.Fatalf("expected 3 messages in one frame, got %d: %q", len(parts), frame)
	}
	if msg, _ := decode(t, parts[1]); msg.Type != MsgTypeState {
		t.Fatalf("expected state in the middle, got %s", msg.Type)
	}

	c.close()
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}
