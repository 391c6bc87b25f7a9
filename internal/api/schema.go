package api

import "net/http"

// getSchema is the pull boundary: the current snapshot, or 503 before the
// first scan completes.
func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "schema not ready")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
