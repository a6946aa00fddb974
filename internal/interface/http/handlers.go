package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glowup/glowup-core/internal/application/command"
	"github.com/glowup/glowup-core/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, status, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateProgress handles POST /api/v1/users/{userID}/progress.
func (s *Server) handleCreateProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateProgress == nil {
		writeNotConfigured(w)
		return
	}

	progress, err := s.deps.CreateProgress.Handle(r.Context(), command.CreateProgressCommand{
		UserID: chi.URLParam(r, "userID"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, progress, nil)
}

// handleGetProgress handles GET /api/v1/users/{userID}/progress.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgress == nil {
		writeNotConfigured(w)
		return
	}

	dto, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{UserID: chi.URLParam(r, "userID")})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto, nil)
}

// addPointsRequest is the body of POST /points.
type addPointsRequest struct {
	Action     string `json:"action"`
	StreakDays int    `json:"streak_days"`
}

// handleAddPoints handles POST /api/v1/users/{userID}/points.
func (s *Server) handleAddPoints(w http.ResponseWriter, r *http.Request) {
	if s.deps.AddPoints == nil {
		writeNotConfigured(w)
		return
	}

	var req addPointsRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	result, err := s.deps.AddPoints.Handle(r.Context(), command.AddPointsCommand{
		UserID:            chi.URLParam(r, "userID"),
		ActionKey:         req.Action,
		CurrentStreakDays: req.StreakDays,
		CorrelationID:     middleware.GetReqID(r.Context()),
	})
	if err != nil {
		if result != nil && result.Attempts > 0 {
			writeDomainErrorWithData(w, r, err, result)
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result, nil)
}

// recordActivityRequest is the optional body of POST /activity.
type recordActivityRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// handleRecordActivity handles POST /api/v1/users/{userID}/activity.
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordActivity == nil {
		writeNotConfigured(w)
		return
	}

	var req recordActivityRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	cmd := command.RecordActivityCommand{
		UserID:        chi.URLParam(r, "userID"),
		CorrelationID: middleware.GetReqID(r.Context()),
	}
	if req.At != nil {
		cmd.Timestamp = *req.At
	}

	result, err := s.deps.RecordActivity.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLE LOOKUPS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLevel handles GET /api/v1/levels/{xp}.
func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	xp, ok := nonNegativeParam(w, r, "xp")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Tables.CalculateLevel(xp), nil)
}

// handleGetRank handles GET /api/v1/ranks/{points}.
func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	points, ok := nonNegativeParam(w, r, "points")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.Tables.DescribeRank(points), nil)
}

// handleListActions handles GET /api/v1/actions.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions := s.deps.Tables.Actions()
	writeJSON(w, r, http.StatusOK, actions, &ResponseMeta{Count: len(actions)})
}

// handleGetLeaderboard handles GET /api/v1/leaderboard?limit=N.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboard == nil {
		writeNotConfigured(w)
		return
	}

	limit, ok := limitQuery(w, r)
	if !ok {
		return
	}

	entries, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{Limit: limit})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries, &ResponseMeta{Count: len(entries)})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// handleListNotifications handles GET /api/v1/users/{userID}/notifications?limit=N.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifications == nil {
		writeNotConfigured(w)
		return
	}

	limit, ok := limitQuery(w, r)
	if !ok {
		return
	}

	items, err := s.deps.Notifications.ListForUser(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items, &ResponseMeta{Count: len(items)})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads a JSON body into dst. An empty body is accepted only when
// optional is set.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

func nonNegativeParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// limitQuery parses ?limit=; 0 means the handler default.
func limitQuery(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
		return 0, false
	}
	return n, true
}

func writeNotConfigured(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotImplemented, "not_implemented", "handler not configured")
}
