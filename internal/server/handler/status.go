package handler

import (
	"net/http"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// StatusProvider reports scanner state; *scanner.Scanner satisfies it.
type StatusProvider interface {
	Status() domain.ScannerStatus
}

// StatusHandler serves the process status.
type StatusHandler struct {
	mode     string
	provider StatusProvider
}

// NewStatusHandler creates a StatusHandler. provider is nil when the
// scanner does not run in this process.
func NewStatusHandler(mode string, provider StatusProvider) *StatusHandler {
	return &StatusHandler{mode: mode, provider: provider}
}

// GetStatus responds with the scanner status, or just the mode.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusOK, domain.ScannerStatus{Mode: h.mode})
		return
	}
	st := h.provider.Status()
	st.Mode = h.mode
	writeJSON(w, http.StatusOK, st)
}
