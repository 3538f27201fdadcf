package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ChordScroll/config"
	"ChordScroll/core/lyrics"
	"ChordScroll/core/playback"
	"ChordScroll/core/session"

	"github.com/gorilla/websocket"
)

type stillTicker struct{ ch chan time.Time }

func (s *stillTicker) C() <-chan time.Time { return s.ch }
func (s *stillTicker) Stop()               {}

// 测试中时钟永不自动前进
func stillTickers(time.Duration) playback.Ticker {
	return &stillTicker{ch: make(chan time.Time)}
}

func newTestServer(t *testing.T, webDir string) (*httptest.Server, *session.Hub) {
	t.Helper()
	library, err := lyrics.NewLibrary("")
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	hub := session.NewHub()
	go hub.Run()

	cfg := &config.Config{WebAppDir: webDir, DefaultBPM: 120, ScrollRate: 2}
	srv := New(cfg, library, hub, playback.WithTicker(stillTickers))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return ts, hub
}

// wsReader 将批量帧按换行拆开
type wsReader struct {
	t       *testing.T
	conn    *websocket.Conn
	pending [][]byte
}

func (r *wsReader) next() session.WSMessage {
	r.t.Helper()
	for len(r.pending) == 0 {
		r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := r.conn.ReadMessage()
		if err != nil {
			r.t.Fatalf("read: %v", err)
		}
		r.pending = bytes.Split(frame, []byte{'\n'})
	}
	raw := r.pending[0]
	r.pending = r.pending[1:]

	var msg session.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.t.Fatalf("decode %q: %v", raw, err)
	}
	return msg
}

func TestHealthAndTranscript(t *testing.T) {
	ts, _ := newTestServer(t, t.TempDir())

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 0 {
		t.Fatalf("unexpected health %+v", health)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS header, got %q", got)
	}

	resp2, err := http.Get(ts.URL + "/api/transcript")
	if err != nil {
		t.Fatalf("GET transcript: %v", err)
	}
	defer resp2.Body.Close()
	var data session.TranscriptData
	if err := json.NewDecoder(resp2.Body).Decode(&data); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	want := lyrics.Default()
	if data.Title != want.Title() || len(data.Lines) != want.Len() || len(data.LyricPositions) != want.LyricCount() {
		t.Fatalf("unexpected transcript %q lines=%d lyrics=%d", data.Title, len(data.Lines), len(data.LyricPositions))
	}
}

func TestSettings(t *testing.T) {
	ts, _ := newTestServer(t, t.TempDir())

	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET settings: %v", err)
	}
	defer resp.Body.Close()
	var s SettingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if s.BPM != 120 || s.ScrollRate != 2 || s.MaxScrollRate != 5 {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestWebSocketPlaybackSession(t *testing.T) {
	ts, hub := newTestServer(t, t.TempDir())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/playback"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	r := &wsReader{t: t, conn: conn}

	if msg := r.next(); msg.Type != session.MsgTypeTranscript {
		t.Fatalf("expected transcript, got %s", msg.Type)
	}
	msg := r.next()
	if msg.Type != session.MsgTypeState {
		t.Fatalf("expected state, got %s", msg.Type)
	}
	var state playback.State
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.IsPlaying || state.Cursor != 0 || state.Tempo != 120 {
		t.Fatalf("unexpected initial state %+v", state)
	}
	msg = r.next()
	var dir playback.ScrollDirective
	if err := json.Unmarshal(msg.Data, &dir); err != nil {
		t.Fatalf("decode scroll: %v", err)
	}
	if msg.Type != session.MsgTypeScroll || dir.Position != state.ActivePosition || dir.Block != "center" {
		t.Fatalf("unexpected scroll %s %+v", msg.Type, dir)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "tempo", "data": map[string]float64{"bpm": 90}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = r.next()
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if msg.Type != session.MsgTypeState || state.Tempo != 90 {
		t.Fatalf("expected tempo 90, got %s %+v", msg.Type, state)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := r.next(); msg.Type != session.MsgTypeError {
		t.Fatalf("expected error, got %s", msg.Type)
	}

	if got := hub.Count(); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}
}

func TestStaticFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>chords</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, dir)

	for path, want := range map[string]string{
		"/":          "chords",
		"/some/page": "chords",
		"/app.js":    "console.log",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), want) {
			t.Fatalf("GET %s: status %d body %q", path, resp.StatusCode, buf.String())
		}
	}
}

func TestStaticMissingIndex(t *testing.T) {
	ts, _ := newTestServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/nothing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
