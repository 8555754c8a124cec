package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nexdesk/nexdesk/ticket"
)

type createTicketRequest struct {
	Queue   string `json:"queue"`
	Subject string `json:"subject"`
}

func (a *API) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Queue) == "" {
		writeError(w, http.StatusBadRequest, "queue is required")
		return
	}

	t := &ticket.Ticket{
		ID:      uuid.New(),
		Queue:   req.Queue,
		Subject: req.Subject,
		Status:  ticket.StatusOpen,
	}
	if err := a.tickets.CreateTicket(r.Context(), b, t); err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	t, err := a.tickets.GetTicket(r.Context(), b, id)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type closeTicketRequest struct {
	AgentID string `json:"agent_id"`
}

func (a *API) handleCloseTicket(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	var req closeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	t, err := a.tickets.CloseTicket(r.Context(), b, id, req.AgentID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type queueCountsResponse struct {
	Counts map[string]int64 `json:"counts"`
}

func (a *API) handleQueueCounts(w http.ResponseWriter, r *http.Request) {
	b, ok := a.binding(w, r)
	if !ok {
		return
	}

	counts, err := a.tickets.CountOpenTickets(r.Context(), b)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queueCountsResponse{Counts: counts})
}
