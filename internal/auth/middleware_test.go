package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func preflightSkipper(r *http.Request) bool {
	return r.Method == http.MethodOptions || r.URL.Path == "/healthz"
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareSkipsPreflight(t *testing.T) {
	mw := NewMiddleware(testConfig, preflightSkipper)
	called := false
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/completions", nil))

	if !called {
		t.Fatal("preflight request must reach the next handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"iss":    testConfig.Issuer,
		"sub":    "user-1",
		"scopes": []string{ScopeWorkoutsRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in request context")
		}
		if claims.Subject != "user-1" {
			t.Fatalf("unexpected subject: %q", claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
