// Package api exposes the control surface of the retargeting daemon: status,
// calibration management, landmark read-out, session replay data, and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumen-motion/avatar.track/internal/engine"
	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/monitoring"
	"github.com/lumen-motion/avatar.track/internal/rig"
	"github.com/lumen-motion/avatar.track/internal/storage"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Engine is the control-plane view of the tick loop.
type Engine interface {
	Status() rig.Status
	Calibration() *rig.CalibrationSnapshot
	Calibrate(ctx context.Context) (*rig.CalibrationSnapshot, error)
	LoadCalibration(ctx context.Context, snap *rig.CalibrationSnapshot) error
	SubmitPose(points []geom.Vec) error
	Landmarks(ctx context.Context) (engine.LandmarkSet, error)
}

// Server serves the HTTP control API.
type Server struct {
	engine       Engine
	calibrations *storage.CalibrationStore // optional
	sessions     *storage.SessionStore     // optional
	avatar       string
	metrics      http.Handler // optional
}

// ServerConfig wires a Server. Engine and Avatar are required; the stores
// and metrics handler are optional and their endpoints 404 without them.
type ServerConfig struct {
	Engine       Engine
	Calibrations *storage.CalibrationStore
	Sessions     *storage.SessionStore
	Avatar       string
	Metrics      http.Handler
}

// NewServer builds a Server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		engine:       cfg.Engine,
		calibrations: cfg.Calibrations,
		sessions:     cfg.Sessions,
		avatar:       cfg.Avatar,
		metrics:      cfg.Metrics,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Diagf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/calibrate", s.runCalibration)
	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/api/landmarks", s.showLandmarks)
	mux.HandleFunc("/api/pose", s.submitPose)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Diagf("writing response: %v", err)
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) runCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := s.engine.Calibrate(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusConflict, fmt.Sprintf("calibration failed: %v", err))
		return
	}
	if s.calibrations != nil {
		if err := s.calibrations.Save(s.avatar, snap); err != nil {
			monitoring.Opsf("persisting calibration: %v", err)
		}
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := s.engine.Calibration()
		if snap == nil {
			s.writeJSONError(w, http.StatusNotFound, "not calibrated")
			return
		}
		s.writeJSON(w, snap)

	case http.MethodPut:
		var snap rig.CalibrationSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid calibration: %v", err))
			return
		}
		if err := s.engine.LoadCalibration(r.Context(), &snap); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("loading calibration: %v", err))
			return
		}
		if s.calibrations != nil {
			if err := s.calibrations.Save(s.avatar, &snap); err != nil {
				monitoring.Opsf("persisting calibration: %v", err)
			}
		}
		s.writeJSON(w, map[string]int{"bones": len(snap.Entries)})

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) showLandmarks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	set, err := s.engine.Landmarks(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, fmt.Sprintf("reading landmarks: %v", err))
		return
	}
	s.writeJSON(w, set)
}

func (s *Server) submitPose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var points []geom.Vec
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid pose: %v", err))
		return
	}
	if err := s.engine.SubmitPose(points); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("pose rejected: %v", err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.sessions == nil {
		s.writeJSONError(w, http.StatusNotFound, "session store not configured")
		return
	}
	list, err := s.sessions.Sessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("listing sessions: %v", err))
		return
	}
	if list == nil {
		list = []storage.SessionInfo{}
	}
	s.writeJSON(w, list)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeJSONError(w, http.StatusNotFound, "session store not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusNotFound, "unknown session path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		info, err := s.sessions.Session(id)
		if errors.Is(err, storage.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound, "no such session")
			return
		}
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("loading session: %v", err))
			return
		}
		poses, err := s.sessions.Poses(id)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("loading poses: %v", err))
			return
		}
		s.writeJSON(w, map[string]any{"session": info, "poses": poses})

	case http.MethodDelete:
		if err := s.sessions.DeleteSession(id); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("deleting session: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
