package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ChordScroll/config"
	"ChordScroll/core/lyrics"
	"ChordScroll/core/playback"
	"ChordScroll/core/session"
	"ChordScroll/logger"
	"ChordScroll/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server 组装路由、会话 Hub 与歌谱库
type Server struct {
	cfg      *config.Config
	library  *lyrics.Library
	hub      *session.Hub
	upgrader websocket.Upgrader

	// 附加到每个会话时钟上的选项（测试中用于注入 ticker）
	clockOpts []playback.Option
}

// New wires a Server. The hub must be running (go hub.Run()).
func New(cfg *config.Config, library *lyrics.Library, hub *session.Hub, clockOpts ...playback.Option) *Server {
	return &Server{
		cfg:     cfg,
		library: library,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clockOpts: clockOpts,
	}
}

// corsMiddleware 添加 CORS 头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router 构建 gorilla/mux 路由
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/health", s.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/transcript", s.TranscriptHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/settings", s.SettingsHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/playback", s.WebSocketHandler)

	// Frontend UI serving
	router.PathPrefix("/").Handler(NewStaticHandler(s.cfg.WebAppDir))
	return router
}

// Start initializes and starts the HTTP server, blocking until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	library, err := lyrics.NewLibrary(cfg.TranscriptFile)
	if err != nil {
		return err
	}
	current := library.Current()
	logger.Info("transcript loaded",
		logger.String("source", transcriptSource(library)),
		logger.String("title", current.Title()),
		logger.Int("lines", current.Len()),
		logger.Int("lyrics", current.LyricCount()))

	hub := session.NewHub()
	go hub.Run()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchTranscript && library.Path() != "" {
		library.OnReload = func(t *model.Transcript) {
			if err := hub.Broadcast(session.MsgTypeReloaded, session.ReloadedData{Title: t.Title(), Lines: t.Len()}); err != nil {
				logger.Warn("reload notice failed", logger.ErrorField(err))
			}
		}
		go func() {
			if err := library.Watch(ctx); err != nil {
				logger.Error("transcript watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	srv := New(cfg, library, hub, playback.WithTempo(cfg.DefaultBPM), playback.WithScrollRate(cfg.ScrollRate))

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			logger.String("addr", cfg.ServerAddr),
			logger.String("ui", cfg.WebAppDir),
			logger.Bool("watch", cfg.WatchTranscript && library.Path() != ""),
			logger.Float64("bpm", cfg.DefaultBPM))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-stop:
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Shutdown 不会关闭 websocket 连接，由 defer hub.Stop() 负责
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func transcriptSource(library *lyrics.Library) string {
	if library.Path() == "" {
		return "embedded"
	}
	return library.Path()
}
