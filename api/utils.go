package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// setupSSE configures the response writer for Server-Sent Events streaming
// Returns the Flusher if supported
func setupSSE(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return flusher, true
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	entry := s.log.WithField("code", code)
	if err != nil {
		entry.WithError(err).Warnf("API Error: %s", message)
	} else {
		entry.Debugf("API Error: %s", message)
	}
	writeJSON(w, code, map[string]string{"error": message})
}
