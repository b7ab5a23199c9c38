package dispatch

// RetryPolicy decides when a failing record has used up its attempts.
// Retries are not delayed: a record that is still pending after a failure
// is picked up again by the next scheduled run at the same ScheduledFor.
type RetryPolicy struct{}

// Exhausted reports whether attempts has reached the record's ceiling.
func (RetryPolicy) Exhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}

// NextAttempt returns the attempt count after one more failure, clamped so
// it never exceeds maxAttempts.
func (RetryPolicy) NextAttempt(attempts, maxAttempts int) int {
	next := attempts + 1
	if maxAttempts > 0 && next > maxAttempts {
		return maxAttempts
	}
	return next
}
