package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// withURLParams attaches chi route parameters to req.
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testEmail(id string) *scheduling.ScheduledEmail {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &scheduling.ScheduledEmail{
		ID:           id,
		To:           "traveller@example.com",
		Subject:      "Payment reminder",
		HTMLContent:  "<p>hi</p>",
		ScheduledFor: at,
		Status:       scheduling.StatusPending,
		MaxAttempts:  3,
		CreatedAt:    at.Add(-time.Hour),
		UpdatedAt:    at.Add(-time.Hour),
	}
}

func TestCreateEmailHandler_Valid(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock := &mockEmails{
		createFn: func(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error) {
			if req.To != "traveller@example.com" {
				t.Errorf("expected to traveller@example.com, got %s", req.To)
			}
			if len(req.Cc) != 1 {
				t.Errorf("expected 1 cc, got %v", req.Cc)
			}
			if req.Variables["term"] != "deposit" {
				t.Errorf("expected template variable term=deposit, got %v", req.Variables)
			}
			return &scheduling.CreateResult{ID: "e-1", ScheduledFor: at}, nil
		},
	}

	body := `{"to":"traveller@example.com","cc":["agent@example.com"],"subject":"S","html_content":"<p>x</p>","scheduled_for":"2026-05-01T18:00:00+09:00","template_variables":{"term":"deposit"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduled-emails", strings.NewReader(body))
	rec := httptest.NewRecorder()

	CreateEmailHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp scheduling.CreateResult
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "e-1" || !resp.ScheduledFor.Equal(at) {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateEmailHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed json", `{`, nil, http.StatusBadRequest},
		{"unknown field", `{"recipient":"x"}`, nil, http.StatusBadRequest},
		{"invalid argument", `{"to":"a@b.c"}`, fmt.Errorf("%w: missing subject", scheduling.ErrInvalidArgument), http.StatusBadRequest},
		{"store failure", `{"to":"a@b.c"}`, errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEmails{
				createFn: func(context.Context, scheduling.CreateRequest) (*scheduling.CreateResult, error) {
					return nil, tt.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduled-emails", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			CreateEmailHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] == "" {
				t.Error("expected error message")
			}
			if tt.status == http.StatusInternalServerError && strings.Contains(resp["error"], "connection refused") {
				t.Error("internal error details must not leak")
			}
		})
	}
}

func TestListEmailsHandler_Filters(t *testing.T) {
	mock := &mockEmails{
		listFn: func(ctx context.Context, f scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error) {
			if f.Status != scheduling.StatusFailed || f.BookingID != "B1" || f.EmailType != "payment-reminder" {
				t.Errorf("unexpected filter %+v", f)
			}
			if f.Limit != 20 || f.Offset != 40 {
				t.Errorf("unexpected paging %d/%d", f.Limit, f.Offset)
			}
			return []*scheduling.ScheduledEmail{testEmail("e-1")}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduled-emails?status=failed&booking_id=B1&email_type=payment-reminder&limit=20&offset=40", nil)
	rec := httptest.NewRecorder()
	ListEmailsHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "e-1" {
		t.Errorf("unexpected items %+v", resp.Items)
	}
}

func TestListEmailsHandler_EmptyIsArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduled-emails", nil)
	rec := httptest.NewRecorder()
	ListEmailsHandler(&mockEmails{}, zerolog.Nop()).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestListEmailsHandler_BadPaging(t *testing.T) {
	for _, q := range []string{"limit=ten", "offset=1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/scheduled-emails?"+q, nil)
		rec := httptest.NewRecorder()
		ListEmailsHandler(&mockEmails{}, zerolog.Nop()).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", q, rec.Code)
		}
	}
}

func TestGetEmailHandler(t *testing.T) {
	mock := &mockEmails{
		getFn: func(ctx context.Context, id string) (*scheduling.ScheduledEmail, error) {
			if id == "e-1" {
				return testEmail(id), nil
			}
			return nil, fmt.Errorf("get %s: %w", id, scheduling.ErrNotFound)
		},
	}

	tests := []struct {
		id     string
		status int
	}{
		{"e-1", http.StatusOK},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/scheduled-emails/"+tt.id, nil), "id", tt.id)
		rec := httptest.NewRecorder()
		GetEmailHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.id, tt.status, rec.Code)
		}
	}
}

func TestCancelEmailHandler_AlreadySent(t *testing.T) {
	mock := &mockEmails{
		cancelFn: func(ctx context.Context, id string) error {
			return fmt.Errorf("%w: email %s has already been sent", scheduling.ErrFailedPrecondition, id)
		},
	}

	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/scheduled-emails/e-1/cancel", nil), "id", "e-1")
	rec := httptest.NewRecorder()
	CancelEmailHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
}

func TestRescheduleEmailHandler(t *testing.T) {
	mock := &mockEmails{
		rescheduleFn: func(ctx context.Context, id string, at string) (*scheduling.ScheduledEmail, error) {
			if at != "2026-06-01T09:00:00Z" {
				t.Errorf("unexpected scheduled_for %q", at)
			}
			e := testEmail(id)
			e.ScheduledFor = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
			return e, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduled-emails/e-1/reschedule",
		strings.NewReader(`{"scheduled_for":"2026-06-01T09:00:00Z"}`))
	req = withURLParams(req, "id", "e-1")
	rec := httptest.NewRecorder()
	RescheduleEmailHandler(mock, zerolog.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp scheduling.ScheduledEmail
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ScheduledFor.Month() != time.June {
		t.Errorf("expected June delivery, got %v", resp.ScheduledFor)
	}
}
