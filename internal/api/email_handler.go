package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// emailService is the scheduler surface the handlers call.
type emailService interface {
	Create(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error)
	Get(ctx context.Context, id string) (*scheduling.ScheduledEmail, error)
	Cancel(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, newScheduledFor string) (*scheduling.ScheduledEmail, error)
	List(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error)
}

type rescheduleRequest struct {
	ScheduledFor string `json:"scheduled_for"`
}

// listResponse wraps a page of records.
type listResponse struct {
	Items  []*scheduling.ScheduledEmail `json:"items"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// CreateEmailHandler handles POST /api/v1/scheduled-emails.
func CreateEmailHandler(svc emailService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.CreateRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Create(r.Context(), req)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// ListEmailsHandler handles GET /api/v1/scheduled-emails.
// Query parameters: status, email_type, booking_id, limit, offset.
func ListEmailsHandler(svc emailService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := scheduling.ListFilter{
			Status:    scheduling.Status(q.Get("status")),
			EmailType: q.Get("email_type"),
			BookingID: q.Get("booking_id"),
		}

		var err error
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if filter.Offset, err = intParam(q.Get("offset")); err != nil {
			respondError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}

		emails, err := svc.List(r.Context(), filter)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		if emails == nil {
			emails = []*scheduling.ScheduledEmail{}
		}
		respondJSON(w, http.StatusOK, listResponse{Items: emails, Limit: filter.Limit, Offset: filter.Offset})
	}
}

// GetEmailHandler handles GET /api/v1/scheduled-emails/{id}.
func GetEmailHandler(svc emailService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, email)
	}
}

// CancelEmailHandler handles POST /api/v1/scheduled-emails/{id}/cancel.
func CancelEmailHandler(svc emailService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Cancel(r.Context(), id); err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(scheduling.StatusCancelled)})
	}
}

// RescheduleEmailHandler handles POST /api/v1/scheduled-emails/{id}/reschedule.
func RescheduleEmailHandler(svc emailService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		email, err := svc.Reschedule(r.Context(), chi.URLParam(r, "id"), req.ScheduledFor)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, email)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
