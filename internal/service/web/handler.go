package web

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

type Handler struct {
	stats types.StatsProvider
	ready *atomic.Bool
}

func NewHandler(stats types.StatsProvider, ready *atomic.Bool) *Handler {
	return &Handler{
		stats: stats,
		ready: ready,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleReady 在 acceptor 开始监听之前返回 503
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("not ready"))
}

// HandleStats 处理 GET /api/stats 请求
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.stats.Stats()); err != nil {
		logger.Warn().Err(err).Msg("Failed to encode stats")
	}
}
