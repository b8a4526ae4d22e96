package ranker

import (
	"sync"

	"github.com/alanyoungcy/tokenarb/internal/domain"
)

// Stats summarizes the history buffer.
type Stats struct {
	Count        int     `json:"count"`
	Actionable   int     `json:"actionable"`
	MeanNetUSD   float64 `json:"mean_net_usd"`
	BestNetUSD   float64 `json:"best_net_usd"`
	BestPathID   string  `json:"best_path_id,omitempty"`
	TotalEdgeUSD float64 `json:"total_edge_usd"`
}

// History is a bounded, concurrency-safe buffer of ranked opportunities.
// Oldest entries are evicted first.
type History struct {
	mu    sync.RWMutex
	items []domain.Opportunity
	limit int
}

// NewHistory creates a History that keeps at most limit entries.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Add appends opportunities, evicting the oldest on overflow.
func (h *History) Add(opps ...domain.Opportunity) {
	if len(opps) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, opps...)
	if overflow := len(h.items) - h.limit; overflow > 0 {
		h.items = append([]domain.Opportunity(nil), h.items[overflow:]...)
	}
}

// Recent returns up to n of the newest entries, newest first.
func (h *History) Recent(n int) []domain.Opportunity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.items) {
		n = len(h.items)
	}
	out := make([]domain.Opportunity, 0, n)
	for i := len(h.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.items[i])
	}
	return out
}

// Latest returns the newest actionable opportunity.
func (h *History) Latest() (domain.Opportunity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.items) - 1; i >= 0; i-- {
		if h.items[i].Actionable {
			return h.items[i], true
		}
	}
	return domain.Opportunity{}, false
}

// Stats computes summary statistics over the buffer.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var s Stats
	var sum float64
	for i, o := range h.items {
		s.Count++
		if o.Actionable {
			s.Actionable++
		}
		sum += o.NetProfitUSD
		s.TotalEdgeUSD += o.EdgeUSD
		if i == 0 || o.NetProfitUSD > s.BestNetUSD {
			s.BestNetUSD = o.NetProfitUSD
			s.BestPathID = o.Path.ID
		}
	}
	if s.Count > 0 {
		s.MeanNetUSD = sum / float64(s.Count)
	}
	return s
}
