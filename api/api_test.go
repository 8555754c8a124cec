package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nexdesk/nexdesk/api"
	"github.com/nexdesk/nexdesk/dispatcher"
	"github.com/nexdesk/nexdesk/hours"
	"github.com/nexdesk/nexdesk/store/memory"
	"github.com/nexdesk/nexdesk/tenant"
	"github.com/nexdesk/nexdesk/ticket"
)

func newTestAPI(t *testing.T) (http.Handler, *memory.Store, tenant.Binding) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := memory.New()
	rec := tenant.Record{TenantID: uuid.New(), Subdomain: "acme", Partition: "acme"}
	if err := s.Provision(context.Background(), rec); err != nil {
		t.Fatalf("provision: %v", err)
	}
	b := tenant.Binding{Subdomain: rec.Subdomain, Partition: rec.Partition, TenantID: rec.TenantID}

	hoursSvc := hours.NewService(s, hours.WithLogger(logger))
	d := dispatcher.New(s, hoursSvc, dispatcher.WithLogger(logger))
	a := api.New(s, d, hoursSvc, api.WithLogger(logger))
	return a.Routes(), s, b
}

func doJSON(t *testing.T, h http.Handler, b tenant.Binding, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(tenant.NewContext(req.Context(), b))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// ----------------------------------------------------------------------------
// Health
// ----------------------------------------------------------------------------

func TestHealth_NoTenantRequired(t *testing.T) {
	h, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Tickets
// ----------------------------------------------------------------------------

func TestCreateAndGetTicket(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodPost, "/v1/tickets", map[string]string{
		"queue": "support", "subject": "printer on fire",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body)
	}
	created := decode[ticket.Ticket](t, rec)
	if created.Seq == 0 {
		t.Error("expected the store to assign a sequence number")
	}

	rec = doJSON(t, h, b, http.MethodGet, "/v1/tickets/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200: %s", rec.Code, rec.Body)
	}
	got := decode[ticket.Ticket](t, rec)
	if got.Subject != "printer on fire" {
		t.Errorf("subject = %q, want %q", got.Subject, "printer on fire")
	}
}

func TestCreateTicket_MissingQueue(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodPost, "/v1/tickets", map[string]string{"subject": "no queue"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodGet, "/v1/tickets/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetTicket_BadID(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodGet, "/v1/tickets/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Dispatch pull
// ----------------------------------------------------------------------------

func TestPull_ClaimsAndDrains(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodPost, "/v1/tickets", map[string]string{
		"queue": "support", "subject": "only ticket",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	pull := map[string]any{"agent_id": "agent-1", "queues": []string{"support"}}

	rec = doJSON(t, h, b, http.MethodPost, "/v1/dispatch/pull", pull)
	if rec.Code != http.StatusOK {
		t.Fatalf("pull status = %d, want 200: %s", rec.Code, rec.Body)
	}
	claimed := decode[ticket.Ticket](t, rec)
	if claimed.Assignee != "agent-1" {
		t.Errorf("assignee = %q, want agent-1", claimed.Assignee)
	}

	// Queue is drained now.
	rec = doJSON(t, h, b, http.MethodPost, "/v1/dispatch/pull", pull)
	if rec.Code != http.StatusNoContent {
		t.Errorf("second pull status = %d, want 204", rec.Code)
	}
}

func TestPull_RequiresAgentID(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodPost, "/v1/dispatch/pull", map[string]any{
		"queues": []string{"support"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Close
// ----------------------------------------------------------------------------

func TestCloseTicket_WrongAssignee(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodPost, "/v1/tickets", map[string]string{
		"queue": "support", "subject": "contested",
	})
	created := decode[ticket.Ticket](t, rec)

	rec = doJSON(t, h, b, http.MethodPost, "/v1/dispatch/pull", map[string]any{
		"agent_id": "agent-1", "queues": []string{"support"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pull status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, b, http.MethodPost, "/v1/tickets/"+created.ID.String()+"/close",
		map[string]string{"agent_id": "agent-2"})
	if rec.Code != http.StatusConflict {
		t.Errorf("close status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, b, http.MethodPost, "/v1/tickets/"+created.ID.String()+"/close",
		map[string]string{"agent_id": "agent-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d, want 200: %s", rec.Code, rec.Body)
	}
	closed := decode[ticket.Ticket](t, rec)
	if closed.Status != ticket.StatusClosed {
		t.Errorf("status = %q, want closed", closed.Status)
	}
}

// ----------------------------------------------------------------------------
// Queue counts
// ----------------------------------------------------------------------------

func TestQueueCounts(t *testing.T) {
	h, _, b := newTestAPI(t)

	for i := range 3 {
		rec := doJSON(t, h, b, http.MethodPost, "/v1/tickets", map[string]string{
			"queue": "support", "subject": fmt.Sprintf("ticket %d", i),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
		}
	}

	rec := doJSON(t, h, b, http.MethodGet, "/v1/queues/counts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Counts map[string]int64 `json:"counts"`
	}](t, rec)
	if resp.Counts["support"] != 3 {
		t.Errorf("open count = %d, want 3", resp.Counts["support"])
	}
}

// ----------------------------------------------------------------------------
// Queue hours
// ----------------------------------------------------------------------------

func TestQueueHours(t *testing.T) {
	h, s, b := newTestAPI(t)
	ctx := context.Background()

	if err := s.UpsertQueueConfig(ctx, b, hours.Config{
		Queue: "support", Timezone: "UTC", Enabled: true,
	}); err != nil {
		t.Fatalf("upsert config: %v", err)
	}
	// Open Tuesdays 09:00 to 18:00.
	if err := s.ReplaceSchedule(ctx, b, "support", []hours.Rule{
		{Queue: "support", Weekday: 2, StartMinute: 540, EndMinute: 1080},
	}, nil); err != nil {
		t.Fatalf("replace schedule: %v", err)
	}

	// 2024-06-04 is a Tuesday.
	rec := doJSON(t, h, b, http.MethodGet, "/v1/queues/support/hours?at=2024-06-04T10:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	d := decode[hours.Decision](t, rec)
	if !d.Open {
		t.Errorf("expected open at Tuesday 10:00, got %+v", d)
	}

	rec = doJSON(t, h, b, http.MethodGet, "/v1/queues/support/hours?at=2024-06-05T10:00:00Z", nil)
	d = decode[hours.Decision](t, rec)
	if d.Open {
		t.Errorf("expected closed on Wednesday, got %+v", d)
	}

	rec = doJSON(t, h, b, http.MethodGet, "/v1/queues/support/hours?at=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad at status = %d, want 400", rec.Code)
	}
}

func TestQueueHours_UnknownQueue(t *testing.T) {
	h, _, b := newTestAPI(t)

	rec := doJSON(t, h, b, http.MethodGet, "/v1/queues/nope/hours", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
