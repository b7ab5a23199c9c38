// Package reminder turns bookings into scheduled payment reminders and
// retracts them when a term is paid or the booking is cancelled.
package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// EmailType tags every record this package creates.
const EmailType = "payment-reminder"

// Booking is the slice of a travel booking the planner needs.
type Booking struct {
	ID            string   `json:"id"`
	TravellerName string   `json:"traveller_name"`
	Email         string   `json:"email"`
	Cc            []string `json:"cc,omitempty"`
	Currency      string   `json:"currency"`
	Terms         []Term   `json:"terms"`
}

// Term is one installment of a booking's payment plan.
type Term struct {
	Name    string    `json:"name"`
	DueDate time.Time `json:"due_date"`
	Amount  string    `json:"amount"`
	Paid    bool      `json:"paid"`
}

// Validate checks the fields Plan relies on.
func (b Booking) Validate() error {
	var missing []string
	if strings.TrimSpace(b.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(b.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: booking missing %s", scheduling.ErrInvalidArgument, strings.Join(missing, ", "))
	}

	seen := make(map[string]struct{}, len(b.Terms))
	for i, t := range b.Terms {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: term %d has no name", scheduling.ErrInvalidArgument, i)
		}
		if t.DueDate.IsZero() {
			return fmt.Errorf("%w: term %q has no due date", scheduling.ErrInvalidArgument, t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate term %q", scheduling.ErrInvalidArgument, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}
