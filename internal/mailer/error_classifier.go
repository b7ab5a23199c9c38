package mailer

import (
	"errors"
	"strings"
)

// SendError wraps a mail service error with classification metadata.
type SendError struct {
	// Sender is the name of the mail service that returned the error.
	Sender string
	// StatusCode is the HTTP or SMTP reply code, when there is one.
	StatusCode int
	// Message is the error description from the service.
	Message string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *SendError) Error() string {
	return e.Sender + ": " + e.Message
}

// IsPermanent returns true if the error is a permanent failure.
func IsPermanent(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Permanent
	}
	return false
}

// Class returns "permanent" or "transient" for metrics labels. Unknown
// errors count as transient.
func Class(err error) string {
	if IsPermanent(err) {
		return "permanent"
	}
	return "transient"
}

// ClassifyHTTPError creates a SendError from an HTTP status code and
// response body. It returns nil for 2xx codes.
func ClassifyHTTPError(senderName string, statusCode int, body string) *SendError {
	se := &SendError{
		Sender:     senderName,
		StatusCode: statusCode,
		Message:    body,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil

	case statusCode == 400:
		se.Permanent = containsPermanentIndicator(body)

	case statusCode == 401, statusCode == 403, statusCode == 404:
		se.Permanent = true

	case statusCode == 429:
		// Rate limited.
		se.Permanent = false

	case statusCode >= 500:
		se.Permanent = containsPermanentServerIndicator(body)

	default:
		se.Permanent = statusCode >= 400 && statusCode < 500
	}

	return se
}

// ClassifySMTPReply creates a SendError from an SMTP reply code. 5xx replies
// are permanent, everything else transient.
func ClassifySMTPReply(senderName string, code int, message string) *SendError {
	return &SendError{
		Sender:     senderName,
		StatusCode: code,
		Message:    message,
		Permanent:  code >= 500 && code < 600,
	}
}

func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid recipient",
		"invalid email",
		"does not exist",
		"mailbox not found",
		"recipient rejected",
		"bad request",
		"validation error",
		"invalid address",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func containsPermanentServerIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid api key",
		"authentication failed",
		"account suspended",
		"account disabled",
		"unauthorized",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
