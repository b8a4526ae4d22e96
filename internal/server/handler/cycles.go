package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// CycleHandler serves the scan cycle log.
type CycleHandler struct {
	store  domain.ScanCycleStore
	logger *slog.Logger
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(store domain.ScanCycleStore, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{store: store, logger: logHandler(logger, "cycles")}
}

type listCyclesResponse struct {
	Cycles []domain.ScanCycle `json:"cycles"`
}

// ListRecent returns recent cycles newest first.
// GET /api/cycles/recent?limit=20
func (h *CycleHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.store.ListRecent(r.Context(), parseLimit(r, 20))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list cycles failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list scan cycles")
		return
	}
	if cycles == nil {
		cycles = []domain.ScanCycle{}
	}
	writeJSON(w, http.StatusOK, listCyclesResponse{Cycles: cycles})
}
