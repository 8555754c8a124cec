package api

import (
	"net/http"
	"time"
)

// handleQueueHours reports whether a queue is open. The optional `at`
// query parameter (RFC 3339) evaluates a past or future instant;
// omitted means now.
func (a *API) handleQueueHours(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	queueName := r.PathValue("queue")

	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at parameter, want RFC 3339")
			return
		}
		at = parsed
	}

	decision, err := a.hoursSvc.IsOpen(r.Context(), b, queueName, at)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
