package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

type correlationEntry struct {
	MessageID int64    `json:"message_id"`
	IDs       []string `json:"ids"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Clients(),
	})
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	all, err := s.queries.Correlations(r.Context())
	if err != nil {
		s.logger.Error("Failed to list correlations", zap.Error(err))
		http.Error(w, "Failed to list correlations", http.StatusInternalServerError)
		return
	}

	entries := make([]correlationEntry, 0, len(all))
	for k, ids := range all {
		entries = append(entries, correlationEntry{MessageID: k, IDs: ids})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MessageID < entries[j].MessageID })

	if v := r.URL.Query().Get("message_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid message_id", http.StatusBadRequest)
			return
		}
		ids, ok := all[id]
		if !ok {
			http.Error(w, "correlation not found", http.StatusNotFound)
			return
		}
		entries = []correlationEntry{{MessageID: id, IDs: ids}}
	}

	s.writeJSON(w, entries)
}

func (s *Server) handleOpenTrades(w http.ResponseWriter, r *http.Request) {
	positions, err := s.queries.OpenPositions(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.logger.Error("Failed to list open trades", zap.Error(err))
		http.Error(w, "Failed to list open trades: "+err.Error(), http.StatusBadGateway)
		return
	}
	if positions == nil {
		positions = []*domain.Position{}
	}
	s.writeJSON(w, positions)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
