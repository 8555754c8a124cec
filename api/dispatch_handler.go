package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type pullRequest struct {
	AgentID string   `json:"agent_id"`
	Queues  []string `json:"queues"`
}

// handlePull claims the next eligible ticket for an agent. 200 with
// the ticket on a claim, 204 when nothing is available.
func (a *API) handlePull(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	t, err := a.dispatch.Pull(r.Context(), b, req.AgentID, req.Queues)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	if t == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
