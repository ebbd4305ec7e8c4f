package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"siteaudit/internal/assessment"
	"siteaudit/internal/engine"
)

// Handler is the thin HTTP layer. It delegates to the engine service without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	engine *engine.Service
	logger *slog.Logger
}

// NewHandler constructs the HTTP handler over the engine service.
func NewHandler(svc *engine.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: svc, logger: logger}
}

type assessRequest struct {
	SubjectID    string            `json:"subject_id"`
	Target       string            `json:"target"`
	Kinds        []string          `json:"kinds"`
	Industry     string            `json:"industry,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
	TTLSeconds   int               `json:"ttl_seconds,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

type assessResponse struct {
	FromCache bool                       `json:"from_cache"`
	Result    assessment.AggregateResult `json:"result"`
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SubjectID == "" || req.Target == "" {
		h.writeError(w, http.StatusBadRequest, "subject_id and target are required")
		return
	}

	kinds := make([]assessment.Kind, 0, len(req.Kinds))
	for _, raw := range req.Kinds {
		kind, err := assessment.ParseKind(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kinds = append(kinds, kind)
	}

	result, fromCache, err := h.engine.Assess(r.Context(), engine.AssessInput{
		SubjectID:    req.SubjectID,
		Target:       req.Target,
		Kinds:        kinds,
		Industry:     req.Industry,
		Extra:        req.Extra,
		ForceRefresh: req.ForceRefresh,
		TTLOverride:  time.Duration(req.TTLSeconds) * time.Second,
		Tags:         req.Tags,
	})
	if err != nil {
		if errors.Is(err, assessment.ErrNoRequests) || errors.Is(err, assessment.ErrUnsupportedKind) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("assessment failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}

	h.writeJSON(w, http.StatusOK, assessResponse{FromCache: fromCache, Result: result})
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.CacheStats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":    stats,
		"hit_rate": stats.HitRate(),
	})
}

func (h *Handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := h.engine.ClearCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type invalidateRequest struct {
	Domain string `json:"domain"`
}

func (h *Handler) handleInvalidateDomain(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Domain == "" {
		h.writeError(w, http.StatusBadRequest, "domain is required")
		return
	}
	removed := h.engine.InvalidateDomain(r.Context(), req.Domain)
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
