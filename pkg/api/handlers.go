package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
	"github.com/dixieflatline76/AetherDesk/pkg/engine"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

const maxBody = 64 << 10

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// statusCode maps an engine error to an HTTP status.
func statusCode(err error) int {
	if errors.Is(err, wallpaper.ErrStartAborted) {
		return http.StatusConflict
	}
	switch apperror.KindOf(err) {
	case apperror.KindConfig:
		return http.StatusBadRequest
	case apperror.KindBusy, apperror.KindInvalidState:
		return http.StatusConflict
	case apperror.KindExternalDependencyMissing:
		return http.StatusFailedDependency
	case apperror.KindUnsupportedPlatform:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), errorBody{Error: err.Error(), Kind: apperror.KindOf(err).String()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Config("decode request", "invalid request body: %v", err)
	}
	return nil
}

// detached keeps renderer lifetimes independent of the request.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"version": config.AppVersion,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	path, known := s.ctl.Current(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "known": known})
}

// handleApply switches to the posted wallpaper. The body is a wallpaper record;
// loop defaults to true.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var rec config.WallpaperRecord
	if err := decode(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	spec, err := engine.SpecFromRecord(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctl.Apply(detached(r), spec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

// command adapts a no-argument engine operation to a handler.
func (s *Server) command(op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(detached(r)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ctl.Status())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.command(s.ctl.Stop)(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.command(s.ctl.Pause)(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.command(s.ctl.Resume)(w, r)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.command(s.ctl.Clear)(w, r)
}
