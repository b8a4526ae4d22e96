package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// PriceHandler serves the latest consensus prices from the shared price
// book.
type PriceHandler struct {
	book   domain.PriceBook
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(book domain.PriceBook, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{book: book, logger: logHandler(logger, "prices")}
}

type listPricesResponse struct {
	Prices []domain.ConsensusPrice `json:"prices"`
}

// ListPrices returns every pair of the last published snapshot.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.book.Latest(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}
	if prices == nil {
		prices = []domain.ConsensusPrice{}
	}
	writeJSON(w, http.StatusOK, listPricesResponse{Prices: prices})
}
