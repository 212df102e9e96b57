package server

import (
	"encoding/json"
	"net/http"
)

// Handler routes the websocket endpoint plus a health probe and the snapshot listing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/snapshots", s.handleSnapshots)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	select {
	case <-s.done:
		status = "stopped"
	default:
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"clients": s.ClientCount(),
		"bus":     s.bus.GetMetrics(),
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, ErrNoStore.Error(), http.StatusNotFound)
		return
	}
	keys, err := s.store.Keys(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "stats": s.store.Statistics()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
