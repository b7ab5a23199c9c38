package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/reminder"
)

// reminderPlanner is the booking-facing producer.
type reminderPlanner interface {
	Plan(ctx context.Context, b reminder.Booking) (*reminder.PlanResult, error)
	MarkPaid(ctx context.Context, bookingID, term string) (int, error)
	CancelBooking(ctx context.Context, bookingID string) (int, error)
}

type cancelledResponse struct {
	BookingID string `json:"booking_id"`
	Term      string `json:"term,omitempty"`
	Cancelled int    `json:"cancelled"`
}

// PlanRemindersHandler handles POST /api/v1/bookings/{id}/payment-reminders.
// The body is the booking; its id must match the path or be omitted.
func PlanRemindersHandler(planner reminderPlanner, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b reminder.Booking
		if err := decodeJSON(r, &b); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := chi.URLParam(r, "id")
		if b.ID != "" && b.ID != id {
			respondError(w, http.StatusBadRequest, "booking id in body does not match path")
			return
		}
		b.ID = id

		result, err := planner.Plan(r.Context(), b)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		status := http.StatusOK
		if len(result.Scheduled) > 0 {
			status = http.StatusCreated
		}
		respondJSON(w, status, result)
	}
}

// MarkTermPaidHandler handles POST /api/v1/bookings/{id}/terms/{term}/paid.
func MarkTermPaidHandler(planner reminderPlanner, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, term := chi.URLParam(r, "id"), chi.URLParam(r, "term")
		n, err := planner.MarkPaid(r.Context(), id, term)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, cancelledResponse{BookingID: id, Term: term, Cancelled: n})
	}
}

// CancelBookingHandler handles POST /api/v1/bookings/{id}/cancel.
func CancelBookingHandler(planner reminderPlanner, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n, err := planner.CancelBooking(r.Context(), id)
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, cancelledResponse{BookingID: id, Cancelled: n})
	}
}
