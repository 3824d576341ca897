package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)

	token, err := svc.Generate(&models.User{ID: "u1", Email: "u1@example.com", Name: "User One"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	user, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if user.ID != "u1" || user.Email != "u1@example.com" || user.Name != "User One" {
		t.Errorf("user = %+v", user)
	}
}

func TestJWTExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute)

	token, err := svc.Generate(&models.User{ID: "u1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(expired) error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", time.Hour).Generate(&models.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTService("secret-b", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(wrong secret) error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTDisabled(t *testing.T) {
	svc := NewJWTService("", time.Hour)

	if svc.Enabled() {
		t.Error("Enabled() = true with empty secret")
	}
	if _, err := svc.Generate(&models.User{ID: "u1"}); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Generate() error = %v, want ErrAuthDisabled", err)
	}
	if _, err := svc.Validate("x"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Validate() error = %v, want ErrAuthDisabled", err)
	}
}

func TestJWTEmptySubject(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	if _, err := svc.Generate(&models.User{}); err == nil {
		t.Error("expected error for empty user id")
	}
}
