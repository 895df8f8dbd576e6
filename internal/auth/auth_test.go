package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testConfig = Config{Secret: "test-secret", Issuer: "deskfit.identity"}

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.Secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestParseValidToken(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"iss":    testConfig.Issuer,
		"sub":    "user-1",
		"scopes": []string{ScopeWorkoutsRead, ScopeWorkoutsWrite},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Parse(token, testConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
	if !claims.HasScope(ScopeWorkoutsWrite) {
		t.Fatal("expected write scope")
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"iss": testConfig.Issuer,
		"sub": "user-1",
	})

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"iss": "someone-else",
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsMissingSubject(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"iss": testConfig.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(token, testConfig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseEmptyToken(t *testing.T) {
	if _, err := Parse("   ", testConfig); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
