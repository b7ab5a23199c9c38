package mailer

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		body          string
		wantNil       bool
		wantPermanent bool
	}{
		{"2xx is not an error", 202, "", true, false},
		{"400 invalid recipient", 400, "Invalid recipient address", false, true},
		{"400 generic", 400, "try again", false, false},
		{"401", 401, "", false, true},
		{"403", 403, "", false, true},
		{"404", 404, "", false, true},
		{"429", 429, "rate limited", false, false},
		{"500 generic", 500, "internal error", false, false},
		{"500 invalid api key", 500, "Invalid API key", false, true},
		{"422 other 4xx", 422, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := ClassifyHTTPError("test", tt.statusCode, tt.body)
			if tt.wantNil {
				if se != nil {
					t.Fatalf("expected nil, got %+v", se)
				}
				return
			}
			if se == nil {
				t.Fatal("expected SendError")
			}
			if se.Permanent != tt.wantPermanent {
				t.Errorf("Permanent = %v, want %v", se.Permanent, tt.wantPermanent)
			}
			if se.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", se.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestClassifySMTPReply(t *testing.T) {
	if !ClassifySMTPReply("smtp", 550, "mailbox unavailable").Permanent {
		t.Error("550 must be permanent")
	}
	if ClassifySMTPReply("smtp", 451, "try later").Permanent {
		t.Error("451 must be transient")
	}
}

func TestIsPermanentAndClass(t *testing.T) {
	perm := fmt.Errorf("wrapped: %w", &SendError{Sender: "x", Permanent: true})
	if !IsPermanent(perm) {
		t.Error("expected wrapped permanent error to be detected")
	}
	if Class(perm) != "permanent" {
		t.Errorf("expected class permanent, got %s", Class(perm))
	}
	if IsPermanent(errors.New("boom")) {
		t.Error("unknown errors are not permanent")
	}
	if Class(errors.New("boom")) != "transient" {
		t.Error("unknown errors are transient")
	}
}

func TestSendError_Error(t *testing.T) {
	se := &SendError{Sender: "sendgrid", Message: "bad"}
	if se.Error() != "sendgrid: bad" {
		t.Errorf("unexpected message %q", se.Error())
	}
}
