/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/munin_audio/internal/audio"
	"github.com/friendsincode/munin_audio/internal/config"
	"github.com/friendsincode/munin_audio/internal/logbuffer"
	"github.com/friendsincode/munin_audio/internal/playlist"
	"github.com/friendsincode/munin_audio/internal/playout"
	"github.com/friendsincode/munin_audio/internal/scheduler"
)

// command returns a handler that sends a fixed transport command.
func (s *Server) command(cmd playout.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sendCommand(w, cmd)
	}
}

func (s *Server) sendCommand(w http.ResponseWriter, cmd playout.Command) {
	if err := s.engine.Send(cmd); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, playout.ErrCommandBacklog) {
			status = http.StatusTooManyRequests
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIndex *int `json:"track_index"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}
	index := -1
	if req.TrackIndex != nil {
		index = *req.TrackIndex
	}
	s.sendCommand(w, playout.Play(index))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionSecs float64 `json:"position_secs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.PositionSecs < 0 {
		writeJSONError(w, http.StatusBadRequest, "negative_position")
		return
	}
	pos := time.Duration(req.PositionSecs * float64(time.Second))
	s.sendCommand(w, playout.Seek(pos))
}

func (s *Server) handleLevels(w http.ResponseWriter, _ *http.Request) {
	rms := s.engine.Level()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"rms":    rms,
		"db":     audio.DBFS(rms),
		"silent": s.engine.Silent(),
	})
}

func (s *Server) handlePlaylistList(w http.ResponseWriter, _ *http.Request) {
	tracks, err := s.store.List()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	writeJSONResponse(w, http.StatusOK, tracks)
}

func (s *Server) handlePlaylistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string  `json:"path"`
		Title        string  `json:"title"`
		Artist       string  `json:"artist"`
		DurationSecs float64 `json:"duration_secs"`
		Position     *int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Path == "" {
		writeJSONError(w, http.StatusBadRequest, "path_required")
		return
	}
	duration := time.Duration(req.DurationSecs * float64(time.Second))

	var (
		track playlist.Track
		err   error
	)
	if req.Position != nil {
		track, err = s.store.Insert(*req.Position, req.Path, req.Title, req.Artist, duration)
	} else {
		track, err = s.store.Append(req.Path, req.Title, req.Artist, duration)
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "add_failed")
		return
	}
	if err := s.queue.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("queue reload after add")
	}
	writeJSONResponse(w, http.StatusCreated, track)
}

func (s *Server) handlePlaylistRemove(w http.ResponseWriter, r *http.Request) {
	err := s.store.Remove(chi.URLParam(r, "id"))
	if errors.Is(err, playlist.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "track_not_found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "remove_failed")
		return
	}
	if err := s.queue.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("queue reload after remove")
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handlePlaylistMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	err := s.store.Move(chi.URLParam(r, "id"), req.To)
	if errors.Is(err, playlist.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "track_not_found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "move_failed")
		return
	}
	if err := s.queue.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("queue reload after move")
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (s *Server) handlePlaybackGet(w http.ResponseWriter, _ *http.Request) {
	s.playbackMu.RLock()
	playback := s.playback
	s.playbackMu.RUnlock()
	writeJSONResponse(w, http.StatusOK, playback)
}

func (s *Server) handlePlaybackPut(w http.ResponseWriter, r *http.Request) {
	var playback config.Playback
	if err := json.NewDecoder(r.Body).Decode(&playback); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := playback.Validate(); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if s.cfg.PlaybackPath != "" {
		if err := config.SavePlayback(s.cfg.PlaybackPath, playback); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "save_failed")
			return
		}
	}
	if err := s.engine.Send(playout.UpdateConfig(playback)); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.playbackMu.Lock()
	s.playback = playback
	s.playbackMu.Unlock()
	writeJSONResponse(w, http.StatusOK, playback)
}

func (s *Server) handleDirectivesList(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.runner.Pending())
}

func (s *Server) handleDirectiveAdd(w http.ResponseWriter, r *http.Request) {
	var directive scheduler.Directive
	if err := json.NewDecoder(r.Body).Decode(&directive); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	id, err := s.runner.Add(directive)
	if errors.Is(err, scheduler.ErrUnknownDirective) {
		writeJSONError(w, http.StatusBadRequest, "unknown_directive")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "schedule_failed")
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDirectiveCancel(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Cancel(chi.URLParam(r, "id")) {
		writeJSONError(w, http.StatusNotFound, "directive_not_found")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := logbuffer.Query{
		Level:     r.URL.Query().Get("level"),
		Component: r.URL.Query().Get("component"),
		Search:    r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		query.Limit = limit
	}
	writeJSONResponse(w, http.StatusOK, s.logBuf.Entries(query))
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSONResponse(w, status, map[string]string{"error": message})
}
