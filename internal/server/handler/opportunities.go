package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/ranker"
)

// OpportunityService defines what the opportunity endpoints need;
// *service.OpportunityService satisfies it.
type OpportunityService interface {
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
	Latest(ctx context.Context) (domain.Opportunity, error)
	Get(ctx context.Context, id string) (domain.Opportunity, error)
	Stats() ranker.Stats
}

// OpportunityHandler serves ranked opportunities.
type OpportunityHandler struct {
	svc    OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(svc OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{svc: svc, logger: logHandler(logger, "opportunities")}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ListRecent returns opportunities newest first.
// GET /api/opportunities/recent?limit=50&offset=0&since=...&until=...
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opps, err := h.svc.Recent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// Latest returns the newest actionable opportunity.
// GET /api/opportunities/latest
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Latest(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no actionable opportunity yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "latest opportunity failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load latest opportunity")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Get returns one opportunity.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get opportunity failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load opportunity")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Stats summarizes the in-process history.
// GET /api/opportunities/stats
func (h *OpportunityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}
