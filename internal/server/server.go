// Package server provides the local HTTP service behind the hueassay browser UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/hook"
	"github.com/ayusman/hueassay/internal/server/api"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

// Config holds the server configuration. Routes are only registered for the
// dependencies that are set.
type Config struct {
	StaticDir     string
	Store         *store.Store
	Session       *session.Session
	Hub           *ProgressHub
	Recorder      *capture.Recorder
	RecordingsDir string
	MaxRecording  time.Duration
	OpenVideo     api.VideoOpener
	Hooks         *hook.Manager
	Logger        *zap.Logger
	// BaseContext parents analysis runs started over HTTP. Defaults to Background.
	BaseContext context.Context
}

// Server represents the HTTP server for the hueassay application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: config.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	if sess := s.config.Session; sess != nil {
		video := api.NewVideoHandler(api.VideoConfig{
			Session:       sess,
			Open:          s.config.OpenVideo,
			Recorder:      s.config.Recorder,
			RecordingsDir: s.config.RecordingsDir,
			MaxRecording:  s.config.MaxRecording,
			Logger:        s.logger,
		})
		s.mux.Handle("/api/video", video)
		s.mux.Handle("/api/video/", video)

		regions := api.NewRegionsHandler(sess)
		s.mux.Handle("/api/regions", regions)
		s.mux.Handle("/api/regions/", regions)

		analysis := api.NewAnalysisHandler(s.config.BaseContext, sess, s.logger)
		s.mux.Handle("/api/analysis", analysis)
		s.mux.Handle("/api/analysis/", analysis)

		s.mux.Handle("/api/preview", api.NewPreviewHandler(sess))

		if s.config.Store != nil {
			presets := api.NewPresetHandler(s.config.Store, sess)
			s.mux.Handle("/api/presets", presets)
			s.mux.Handle("/api/presets/", presets)

			s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, sess, s.logger))
		}
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/progress", s.config.Hub)
	}

	if s.config.Hooks != nil {
		hooks := api.NewHooksHandler(s.config.Hooks)
		s.mux.Handle("/api/hooks", hooks)
		s.mux.Handle("/api/hooks/", hooks)
	}

	// Camera viewfinder for framing the reaction before recording
	if s.config.Recorder != nil {
		s.mux.Handle("/api/camera/stream", NewStreamHandler(s.config.Recorder, s.logger))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Session != nil {
		response["session"] = s.config.Session.Status().State
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
