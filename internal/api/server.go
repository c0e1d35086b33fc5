/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the control plane over HTTP: transport commands,
// playlist CRUD, playback config, directives, logs and the event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/config"
	"github.com/friendsincode/munin_audio/internal/events"
	"github.com/friendsincode/munin_audio/internal/logbuffer"
	"github.com/friendsincode/munin_audio/internal/playlist"
	"github.com/friendsincode/munin_audio/internal/playout"
	"github.com/friendsincode/munin_audio/internal/scheduler"
	"github.com/friendsincode/munin_audio/internal/telemetry"
)

// Transport is the engine surface the API drives.
type Transport interface {
	Send(cmd playout.Command) error
	Snapshot() playout.TransportSnapshot
	Level() float64
	Silent() bool
	Events() *events.Bus
}

// Server hosts the HTTP control plane.
type Server struct {
	cfg     *config.Config
	engine  Transport
	store   *playlist.Store
	queue   *playlist.Queue
	runner  *scheduler.Runner
	logBuf  *logbuffer.Buffer
	metrics *telemetry.Metrics
	logger  zerolog.Logger

	playbackMu sync.RWMutex
	playback   config.Playback

	router     chi.Router
	httpServer *http.Server
}

// Deps collects the server's collaborators.
type Deps struct {
	Config   *config.Config
	Engine   Transport
	Store    *playlist.Store
	Queue    *playlist.Queue
	Runner   *scheduler.Runner
	LogBuf   *logbuffer.Buffer
	Metrics  *telemetry.Metrics
	Playback config.Playback
	Logger   zerolog.Logger
}

// New constructs the server and wires its routes.
func New(deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	// Skip the request timeout for WebSocket upgrades.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:      deps.Config,
		engine:   deps.Engine,
		store:    deps.Store,
		queue:    deps.Queue,
		runner:   deps.Runner,
		logBuf:   deps.LogBuf,
		metrics:  deps.Metrics,
		playback: deps.Playback,
		logger:   deps.Logger.With().Str("component", "api").Logger(),
		router:   router,
	}
	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", deps.Config.HTTPBind, deps.Config.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return srv
}

func (s *Server) configureRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/transport", s.handleSnapshot)
		r.Post("/transport/play", s.handlePlay)
		r.Post("/transport/stop", s.command(playout.Stop()))
		r.Post("/transport/pause", s.command(playout.Pause()))
		r.Post("/transport/resume", s.command(playout.Resume()))
		r.Post("/transport/skip", s.command(playout.Skip()))
		r.Post("/transport/seek", s.handleSeek)
		r.Get("/levels", s.handleLevels)

		r.Get("/playlist", s.handlePlaylistList)
		r.Post("/playlist", s.handlePlaylistAdd)
		r.Delete("/playlist/{id}", s.handlePlaylistRemove)
		r.Post("/playlist/{id}/move", s.handlePlaylistMove)

		r.Get("/config/playback", s.handlePlaybackGet)
		r.Put("/config/playback", s.handlePlaybackPut)

		r.Get("/directives", s.handleDirectivesList)
		r.Post("/directives", s.handleDirectiveAdd)
		r.Delete("/directives/{id}", s.handleDirectiveCancel)

		r.Get("/logs", s.handleLogs)
	})
	s.router.Get("/ws/events", s.handleEventsWS)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Router returns the handler, used by tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
