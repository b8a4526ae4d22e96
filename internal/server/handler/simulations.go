package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/alanyoungcy/tokenarb/internal/service"
)

// BacktestRunner runs a simulation batch; *service.BacktestService
// satisfies it.
type BacktestRunner interface {
	Run(ctx context.Context, req service.BacktestRequest) (service.BacktestResult, error)
	MaxTrials() int
}

// SimulationHandler serves stored simulations and runs new ones.
type SimulationHandler struct {
	runner BacktestRunner
	store  domain.SimulationStore // optional
	logger *slog.Logger
}

// NewSimulationHandler creates a SimulationHandler.
func NewSimulationHandler(runner BacktestRunner, store domain.SimulationStore, logger *slog.Logger) *SimulationHandler {
	return &SimulationHandler{runner: runner, store: store, logger: logHandler(logger, "simulations")}
}

type runSimulationRequest struct {
	Trials         int    `json:"trials"`
	Limit          int    `json:"limit"`
	InputPath      string `json:"input_path"`
	ActionableOnly bool   `json:"actionable_only"`
	Seed           uint64 `json:"seed"`
}

type runSimulationResponse struct {
	Summary     domain.SimulationSummary `json:"summary"`
	Inputs      int                      `json:"inputs"`
	ArchivePath string                   `json:"archive_path,omitempty"`
}

type listSimulationsResponse struct {
	Simulations []domain.SimulationSummary `json:"simulations"`
}

// Run executes a back-test synchronously.
// POST /api/simulations {"trials":1000,"limit":200,"actionable_only":true}
func (h *SimulationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runSimulationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Trials < 1 {
		writeError(w, http.StatusBadRequest, "trials must be at least 1")
		return
	}
	if limit := h.runner.MaxTrials(); limit > 0 && req.Trials > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("trials must not exceed %d", limit))
		return
	}

	res, err := h.runner.Run(r.Context(), service.BacktestRequest{
		Trials:         req.Trials,
		Limit:          req.Limit,
		InputPath:      req.InputPath,
		ActionableOnly: req.ActionableOnly,
		Seed:           req.Seed,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoHistory):
			writeError(w, http.StatusConflict, "no opportunities to simulate")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "input not found")
		default:
			h.logger.ErrorContext(r.Context(), "simulation failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "simulation failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, runSimulationResponse{
		Summary:     res.Summary,
		Inputs:      res.Inputs,
		ArchivePath: res.ArchivePath,
	})
}

// ListRecent returns stored summaries newest first.
// GET /api/simulations/recent?limit=20
func (h *SimulationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "no simulation store configured")
		return
	}
	sims, err := h.store.ListRecent(r.Context(), parseLimit(r, 20))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list simulations failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list simulations")
		return
	}
	if sims == nil {
		sims = []domain.SimulationSummary{}
	}
	writeJSON(w, http.StatusOK, listSimulationsResponse{Simulations: sims})
}

// Get returns one stored summary.
// GET /api/simulations/{id}
func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "no simulation store configured")
		return
	}
	id := r.PathValue("id")
	sum, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "simulation not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get simulation failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load simulation")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
