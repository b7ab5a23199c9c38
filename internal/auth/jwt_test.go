package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWTService() *JWTService {
	return NewJWTService(JWTConfig{
		SigningKey:        "test-secret-key-at-least-32-chars!",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "scheduled-mailer-test",
		Audience:          "scheduled-mailer-api",
	})
}

func TestValidateAccessToken_Valid(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateAccessToken("booking-service", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != "booking-service" {
		t.Errorf("Subject = %q, want booking-service", claims.Subject)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want operator", claims.Role)
	}
}

func TestGenerateAccessToken_UnknownRole(t *testing.T) {
	_, err := newTestJWTService().GenerateAccessToken("svc", "superuser")
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.GenerateAccessToken("svc", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessToken_WrongKey(t *testing.T) {
	token, _ := newTestJWTService().GenerateAccessToken("svc", RoleAdmin)

	other := NewJWTService(JWTConfig{
		SigningKey:        "a-different-secret-key-of-32-chars",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "scheduled-mailer-test",
		Audience:          "scheduled-mailer-api",
	})
	if _, err := other.ValidateAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	if _, err := newTestJWTService().ValidateAccessToken("not.a.jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestValidateAccessToken_WrongAudience(t *testing.T) {
	token, _ := newTestJWTService().GenerateAccessToken("svc", RoleAdmin)

	other := NewJWTService(JWTConfig{
		SigningKey: "test-secret-key-at-least-32-chars!",
		Issuer:     "scheduled-mailer-test",
		Audience:   "some-other-api",
	})
	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("expected audience mismatch to fail")
	}
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := AccessTokenClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "scheduled-mailer-test",
			Audience:  jwt.ClaimStrings{"scheduled-mailer-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := newTestJWTService().ValidateAccessToken(token); err == nil {
		t.Error("expected alg=none token to be rejected")
	}
}
