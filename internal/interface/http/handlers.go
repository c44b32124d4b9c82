package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rokstats/rokstats/internal/application/command"
	"github.com/rokstats/rokstats/internal/application/query"
	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/pkg/logger"
)

// retryAfterSeconds is advertised when the snapshot store is unavailable.
const retryAfterSeconds = 5

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "rokstats",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":    "/health",
			"kingdoms":  "/api/v1/kingdoms",
			"players":   "/api/v1/kingdoms/{kingdom}/players",
			"history":   "/api/v1/players/{id}/history",
			"dashboard": "/api/v1/dashboard",
			"snapshots": "POST /api/v1/snapshots",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRankKingdoms handles GET /api/v1/kingdoms
func (s *Server) handleRankKingdoms(w http.ResponseWriter, r *http.Request) {
	s.handleRankInternal(w, r, snapshot.KindKingdom, "")
}

// handleRankPlayers handles GET /api/v1/kingdoms/{kingdom}/players
func (s *Server) handleRankPlayers(w http.ResponseWriter, r *http.Request) {
	s.handleRankInternal(w, r, snapshot.KindPlayer, r.PathValue("kingdom"))
}

func (s *Server) handleRankInternal(w http.ResponseWriter, r *http.Request, kind snapshot.Kind, group string) {
	if s.deps.RankEntities == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Ranking handler not configured")
		return
	}

	params := r.URL.Query()
	q := query.RankEntitiesQuery{
		Kind:      kind,
		Group:     group,
		Start:     params.Get("start"),
		End:       params.Get("end"),
		SortKey:   params.Get("sort"),
		Direction: params.Get("dir"),
		Search:    params.Get("q"),
		Page:      getQueryParamInt(r, "page", 1),
		PageSize:  getQueryParamInt(r, "page_size", 0),
	}

	result, err := s.deps.RankEntities.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "rank entities", err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		TotalCount: result.Page.TotalItems,
		Page:       result.Page.Page,
		PageSize:   result.Page.PageSize,
		HasMore:    result.Page.HasNext,
	})
}

// handleListGroups handles GET /api/v1/groups
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListGroups == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Group listing not configured")
		return
	}

	kind, err := parseKindParam(r, snapshot.KindPlayer)
	if err != nil {
		s.writeDomainError(w, r, "list groups", err)
		return
	}

	result, err := s.deps.ListGroups.Handle(r.Context(), query.ListGroupsQuery{Kind: kind})
	if err != nil {
		s.writeDomainError(w, r, "list groups", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Groups)})
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY & DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePlayerHistory handles GET /api/v1/players/{id}/history
func (s *Server) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	s.handleHistoryInternal(w, r, snapshot.KindPlayer, r.PathValue("id"))
}

// handleKingdomHistory handles GET /api/v1/kingdoms/{kingdom}/history
func (s *Server) handleKingdomHistory(w http.ResponseWriter, r *http.Request) {
	s.handleHistoryInternal(w, r, snapshot.KindKingdom, r.PathValue("kingdom"))
}

func (s *Server) handleHistoryInternal(w http.ResponseWriter, r *http.Request, kind snapshot.Kind, entityID string) {
	if s.deps.GetEntityHistory == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "History handler not configured")
		return
	}

	result, err := s.deps.GetEntityHistory.Handle(r.Context(), query.GetEntityHistoryQuery{
		Kind:     kind,
		EntityID: entityID,
		Start:    r.URL.Query().Get("start"),
		End:      r.URL.Query().Get("end"),
	})
	if err != nil {
		s.writeDomainError(w, r, "entity history", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handlePlayerDashboard handles GET /api/v1/kingdoms/{kingdom}/dashboard
func (s *Server) handlePlayerDashboard(w http.ResponseWriter, r *http.Request) {
	s.handleDashboardInternal(w, r, snapshot.KindPlayer, r.PathValue("kingdom"))
}

// handleKingdomDashboard handles GET /api/v1/dashboard
func (s *Server) handleKingdomDashboard(w http.ResponseWriter, r *http.Request) {
	s.handleDashboardInternal(w, r, snapshot.KindKingdom, "")
}

func (s *Server) handleDashboardInternal(w http.ResponseWriter, r *http.Request, kind snapshot.Kind, group string) {
	if s.deps.GetGroupDashboard == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Dashboard handler not configured")
		return
	}

	result, err := s.deps.GetGroupDashboard.Handle(r.Context(), query.GetGroupDashboardQuery{
		Kind:   kind,
		Group:  group,
		Metric: r.URL.Query().Get("metric"),
	})
	if err != nil {
		s.writeDomainError(w, r, "group dashboard", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// appendSnapshotsRequest is the body of POST /api/v1/snapshots.
type appendSnapshotsRequest struct {
	Snapshots []command.SnapshotInput `json:"snapshots"`
}

// handleAppendSnapshots handles POST /api/v1/snapshots
func (s *Server) handleAppendSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.deps.AppendSnapshots == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Snapshot ingestion not configured")
		return
	}

	var req appendSnapshotsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Malformed JSON body: "+err.Error())
		return
	}

	result, err := s.deps.AppendSnapshots.Handle(r.Context(), command.AppendSnapshotsCommand{
		Snapshots:     req.Snapshots,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "append snapshots", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an application error onto a status code and error code.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := logger.FromContext(r.Context()).With(logger.Operation(op))

	switch {
	case errors.Is(err, shared.ErrInvalidWindow):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_window", "Window start is after window end")
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, r, http.StatusConflict, "conflict", err.Error())
	case shared.IsStoreUnavailable(err):
		log.Warn("snapshot store unavailable", logger.Err(err))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeJSONError(w, r, http.StatusServiceUnavailable, "store_unavailable", "Snapshot store is temporarily unavailable")
	default:
		log.Error("request failed", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to process request")
	}
}

// parseKindParam reads the optional "kind" query parameter.
func parseKindParam(r *http.Request, def snapshot.Kind) (snapshot.Kind, error) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return def, nil
	}
	return snapshot.ParseKind(raw)
}
