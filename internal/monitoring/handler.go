package monitoring

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler serves the current metrics snapshot as JSON.
type Handler struct {
	collector *Collector
	lookback  int
}

// NewHandler creates a snapshot endpoint over the collector.
func NewHandler(collector *Collector, lookbackHours int) *Handler {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	return &Handler{collector: collector, lookback: lookbackHours}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := h.collector.Collect(r.Context(), h.lookback)
	if err != nil {
		zap.L().Error("monitoring: snapshot failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
