package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/funcdeck-hq/funcdeck/internal/runner"
	"github.com/funcdeck-hq/funcdeck/internal/store"
	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

type invokeRequest struct {
	Path     string          `json:"path"`
	Kind     string          `json:"kind"`
	Args     json.RawMessage `json:"args,omitempty"`
	Identity string          `json:"identity,omitempty"`
}

// invoke proxies one function call to the deployment and records it in
// the history log.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	kind, ok := parseKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "kind must be query, mutation, or action")
		return
	}

	result, err := s.invoker.Invoke(r.Context(), runner.InvokeRequest{
		FullPath: req.Path,
		Kind:     kind,
		Args:     req.Args,
		Identity: req.Identity,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	entry := store.HistoryEntry{
		FullPath: req.Path,
		Kind:     string(kind),
		Args:     req.Args,
		Identity: req.Identity,
		Status:   result.Status,
		Result:   result.Value,
		Error:    result.ErrorMessage,
	}
	if _, err := s.history.Append(r.Context(), entry); err != nil {
		// history is best effort; the invocation already succeeded
		log.Warn().Err(err).Msg("failed to record invocation history")
	}

	writeJSON(w, http.StatusOK, result)
}

func parseKind(kind string) (model.FunctionKind, bool) {
	switch kind {
	case "query":
		return model.KindQuery, true
	case "mutation":
		return model.KindMutation, true
	case "action":
		return model.KindAction, true
	default:
		return "", false
	}
}
