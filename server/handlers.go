package server

import (
	"context"
	"encoding/json"
	"net/http"

	"ChordScroll/core/session"
	"ChordScroll/logger"
	"ChordScroll/model"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// SettingsResponse 新会话的默认参数
type SettingsResponse struct {
	BPM           float64          `json:"bpm"`
	ScrollRate    model.ScrollRate `json:"scrollRate"`
	MinScrollRate model.ScrollRate `json:"minScrollRate"`
	MaxScrollRate model.ScrollRate `json:"maxScrollRate"`
	Step          model.ScrollRate `json:"scrollRateStep"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", logger.ErrorField(err))
	}
}

// HealthHandler 返回服务状态与当前会话数
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.hub.Count()})
}

// TranscriptHandler 返回当前歌谱
func (s *Server) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.NewTranscriptData(s.library.Current()))
}

// SettingsHandler returns the defaults new sessions start with.
func (s *Server) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{
		BPM:           s.cfg.DefaultBPM,
		ScrollRate:    s.cfg.ScrollRate,
		MinScrollRate: model.MinScrollRate,
		MaxScrollRate: model.MaxScrollRate,
		Step:          model.ScrollRateStep,
	})
}

// WebSocketHandler upgrades the request into a playback session. The session
// keeps the transcript it was opened with even if the file is reloaded later.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client, err := session.NewClient(s.hub, conn, s.library.Current(), s.clockOpts...)
	if err != nil {
		logger.Error("create session failed", logger.ErrorField(err))
		conn.Close()
		return
	}

	s.hub.Register(client)
	client.Greet()

	go client.WritePump()
	go client.ReadPump(context.Background())

	logger.Info("websocket session opened",
		logger.String("session", client.ID),
		logger.String("remote", r.RemoteAddr))
}
