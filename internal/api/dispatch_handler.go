package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/auth"
	"github.com/sungwon/scheduled-mailer/internal/dispatch"
)

// dispatchRunner runs one dispatcher pass synchronously.
type dispatchRunner interface {
	Run(ctx context.Context) (dispatch.Summary, error)
}

// RunDispatchHandler handles POST /api/v1/dispatch/run. The pass uses the
// same selection and write-back rules as the scheduled trigger; 409 means
// another run holds the lock.
func RunDispatchHandler(runner dispatchRunner, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("subject", auth.SubjectFromContext(r.Context())).Msg("manual dispatch run requested")

		summary, err := runner.Run(r.Context())
		if err != nil {
			respondServiceError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}
