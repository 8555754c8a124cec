// Package api is the HTTP surface of the dispatch core. Handlers
// expect a tenant binding on the request context; the tenant
// middleware in front of the router puts it there. Responses are JSON.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/dispatcher"
	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

// API wires the HTTP handlers for dispatch, tickets, and hours.
type API struct {
	tickets  ticket.Store
	dispatch *dispatcher.Dispatcher
	hoursSvc *hours.Service
	logger   *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates the API.
func New(tickets ticket.Store, dispatch *dispatcher.Dispatcher, hoursSvc *hours.Service, opts ...Option) *API {
	a := &API{
		tickets:  tickets,
		dispatch: dispatch,
		hoursSvc: hoursSvc,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes returns the router with all dispatch routes registered.
// The health endpoint is registered here too so a bare API handler is
// self-contained; the server additionally exempts it from tenant
// resolution.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /v1/dispatch/pull", a.handlePull)
	mux.HandleFunc("POST /v1/tickets", a.handleCreateTicket)
	mux.HandleFunc("GET /v1/tickets/{id}", a.handleGetTicket)
	mux.HandleFunc("POST /v1/tickets/{id}/close", a.handleCloseTicket)
	mux.HandleFunc("GET /v1/queues/counts", a.handleQueueCounts)
	mux.HandleFunc("GET /v1/queues/{queue}/hours", a.handleQueueHours)
	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// binding fetches the tenant binding the middleware attached. A
// missing binding means the handler was reached without tenant
// resolution, which is a wiring bug, not a client error.
func (a *API) binding(w http.ResponseWriter, r *http.Request) (tenant.Binding, bool) {
	b, ok := tenant.FromContext(r.Context())
	if !ok {
		a.logger.Error("request reached handler without tenant binding",
			slog.String("path", r.URL.Path),
		)
		writeError(w, http.StatusInternalServerError, "tenant not resolved")
		return tenant.Binding{}, false
	}
	return b, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps taxonomy errors to HTTP statuses.
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nexdesk.ErrTicketNotFound),
		errors.Is(err, nexdesk.ErrQueueNotFound),
		errors.Is(err, nexdesk.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, nexdesk.ErrWrongAssignee):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, nexdesk.ErrInvalidPartition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, nexdesk.ErrCatalogMissing), nexdesk.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
