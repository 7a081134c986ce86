package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"options-flow-tracker/models"
)

type simulateRequest struct {
	Symbol string           `json:"symbol"`
	Side   models.TradeSide `json:"side"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	sig, ok := s.state.Current().Signal(symbol)
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "no signal for "+symbol, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"count":     sig.Count,
		"avgStance": sig.AvgStance,
	})
}

func (s *Server) handleToggleAutoTrade(w http.ResponseWriter, r *http.Request) {
	if err := s.state.ToggleAutoTrade(); err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "state store unavailable", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Side = models.TradeSide(strings.ToUpper(string(req.Side)))
	if req.Symbol == "" {
		s.respondWithError(w, http.StatusBadRequest, "symbol is required", nil)
		return
	}
	if !req.Side.Valid() {
		s.respondWithError(w, http.StatusBadRequest, "side must be BULL or BEAR", nil)
		return
	}

	if err := s.state.PlaceSimulatedTrade(req.Symbol, req.Side); err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "state store unavailable", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Refresh(); err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "state store unavailable", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleHealth returns connection status and the last fetch error
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rm := s.state.Current()
	status := "ok"
	if !rm.Connected || rm.LastFetchError != "" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"stream":         rm.Status,
		"snapshotStale":  rm.SnapshotStale,
		"lastFetchError": rm.LastFetchError,
	})
}
