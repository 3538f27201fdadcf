package session

import (
	"encoding/json"
	"time"

	"ChordScroll/model"
)

// MessageType 消息类型
type MessageType string

const (
	// 客户端 -> 服务端：播放控制
	MsgTypeToggle       MessageType = "toggle"        // 播放/暂停切换
	MsgTypePlay         MessageType = "play"          // 播放
	MsgTypePause        MessageType = "pause"         // 暂停
	MsgTypeReset        MessageType = "reset"         // 回到开头
	MsgTypeTempo        MessageType = "tempo"         // 修改 BPM
	MsgTypeScrollFaster MessageType = "scroll_faster" // 滚动倍率 +0.5
	MsgTypeScrollSlower MessageType = "scroll_slower" // 滚动倍率 -0.5
	MsgTypeGetState     MessageType = "get_state"     // 请求当前状态

	// 心跳
	MsgTypePing MessageType = "ping"
	MsgTypePong MessageType = "pong"

	// 服务端 -> 客户端
	MsgTypeTranscript MessageType = "transcript" // 连接建立后下发歌谱
	MsgTypeState      MessageType = "state"      // 播放状态
	MsgTypeScroll     MessageType = "scroll"     // 滚动到指定行
	MsgTypeReloaded   MessageType = "reloaded"   // 歌谱文件已更新，刷新后生效
	MsgTypeError      MessageType = "error"      // 错误
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// TempoData BPM 修改请求
type TempoData struct {
	BPM float64 `json:"bpm"`
}

// TranscriptData 歌谱数据
type TranscriptData struct {
	Title          string       `json:"title"`
	Lines          []model.Line `json:"lines"`
	LyricPositions []int        `json:"lyricPositions"`
}

// ErrorData 错误消息数据
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReloadedData 歌谱更新通知
type ReloadedData struct {
	Title string `json:"title"`
	Lines int    `json:"lines"`
}

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeInvalidTempo = "invalid_tempo"
	ErrCodeUnknownType  = "unknown_type"
)

// NewTranscriptData 从歌谱构造下发数据
func NewTranscriptData(t *model.Transcript) TranscriptData {
	lines := t.Lines()
	if lines == nil {
		lines = []model.Line{}
	}
	positions := t.LyricPositions()
	if positions == nil {
		positions = []int{}
	}
	return TranscriptData{
		Title:          t.Title(),
		Lines:          lines,
		LyricPositions: positions,
	}
}

// Encode marshals data into a timestamped envelope.
func Encode(msgType MessageType, data interface{}) ([]byte, error) {
	msg := &WSMessage{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
