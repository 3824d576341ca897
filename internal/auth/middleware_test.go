package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
)

func principalEcho(t *testing.T, got **models.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("no principal on request context")
		}
		*got = user
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareValidToken(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	token, err := svc.Generate(&models.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	var got *models.User
	handler := Middleware(svc, nil)(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.ID != "u1" {
		t.Errorf("principal = %+v", got)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	handler := Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without valid token")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "Bearer not.a.jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestMiddlewareDisabledUsesLocalPrincipal(t *testing.T) {
	var got *models.User
	handler := Middleware(NewJWTService("", 0), nil)(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.ID != "local" {
		t.Errorf("principal = %+v, want local", got)
	}
}
