package monitor

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	HasRun        bool      `json:"has_run"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	hasRun := s.lastRun != nil
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		HasRun:        hasRun,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.lastRun
	s.mu.RUnlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
