package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"options-flow-tracker/store"
)

// handleDashboardSSE streams dashboard sections as named events, one set per state change
func (s *Server) handleDashboardSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSE(w)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.log.Debugf("[SSE] New dashboard connection from %s", r.RemoteAddr)

	updates, cancel := s.state.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debugf("[SSE] Client disconnected: %s", r.RemoteAddr)
			return

		case rm, ok := <-updates:
			if !ok {
				return
			}
			s.sendDashboard(w, rm)
			flusher.Flush()
		}
	}
}

func (s *Server) sendDashboard(w http.ResponseWriter, rm *store.ReadModel) {
	if rm == nil {
		return
	}
	s.sendSSEEvent(w, "status", map[string]interface{}{
		"version":          rm.Version,
		"stream":           rm.Status,
		"autoTradeEnabled": rm.AutoTradeEnabled,
		"snapshotStale":    rm.SnapshotStale,
		"lastFetchError":   rm.LastFetchError,
		"lastCommandError": rm.LastCommandError,
	})
	s.sendSSEEvent(w, "flows", rm.Flows)
	s.sendSSEEvent(w, "sentiment", rm.SentimentRows)
	s.sendSSEEvent(w, "stats", map[string]interface{}{
		"stats":         rm.Stats,
		"pnlSeries":     rm.PnlSeries,
		"openPositions": rm.OpenPositions,
	})
}

func (s *Server) sendSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.log.WithError(err).Errorf("[SSE] Failed to marshal %s", event)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
