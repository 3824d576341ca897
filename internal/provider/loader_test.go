package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadProviders(t *testing.T) {
	path := writeConfig(t, `{
		"providers": {
			"dish-mcp": {"command": "node", "args": ["dish.js"], "cwd": "/srv/dish"},
			"google-calendar": {"command": "npx", "args": ["gcal-server"]}
		}
	}`)

	providers, err := LoadProviders(path, nil, slog.Default())
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}

	byName := make(map[string]*Provider)
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if p := byName["dish-mcp"]; p == nil || p.Prefix() != "dish_mcp" {
		t.Errorf("dish-mcp prefix = %q, want dish_mcp", p.Prefix())
	}
	if p := byName["google-calendar"]; p == nil || p.Prefix() != "google_calendar" {
		t.Errorf("google-calendar prefix = %q, want google_calendar", p.Prefix())
	}
}

func TestLoadProvidersEnvSubstitution(t *testing.T) {
	t.Setenv("DESKPILOT_TEST_CMD", "node")

	path := writeConfig(t, `{
		"providers": {
			"dish-mcp": {"command": "${DESKPILOT_TEST_CMD}", "env": {"COOKIE": "${DESKPILOT_TEST_UNSET_VAR}"}}
		}
	}`)

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	providers, err := LoadProviders(path, nil, logger)
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}
	if got := providers[0].config.Command; got != "node" {
		t.Errorf("command = %q, want %q", got, "node")
	}
	// Unset variable substitutes to empty string and warns; loading does
	// not fail.
	if got := providers[0].config.Env["COOKIE"]; got != "" {
		t.Errorf("env COOKIE = %q, want empty", got)
	}
	if !strings.Contains(buf.String(), "DESKPILOT_TEST_UNSET_VAR") {
		t.Errorf("expected warning naming the unset variable, log: %s", buf.String())
	}
}

func TestLoadProvidersMissingFile(t *testing.T) {
	_, err := LoadProviders(filepath.Join(t.TempDir(), "nope.json"), nil, slog.Default())
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestLoadProvidersMalformedDocument(t *testing.T) {
	path := writeConfig(t, `{"providers": {`)
	_, err := LoadProviders(path, nil, slog.Default())
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

func TestLoadProvidersPrefixCollision(t *testing.T) {
	path := writeConfig(t, `{
		"providers": {
			"dish-mcp": {"command": "a"},
			"dish_mcp": {"command": "b"}
		}
	}`)

	_, err := LoadProviders(path, nil, slog.Default())
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	if !strings.Contains(err.Error(), "dish_mcp") {
		t.Errorf("collision error should name the prefix: %v", err)
	}
}

func TestLoadProvidersBindsHooks(t *testing.T) {
	path := writeConfig(t, `{
		"providers": {
			"dish-mcp": {"command": "a"},
			"google-calendar": {"command": "b"}
		}
	}`)

	called := false
	hooks := map[string]Hook{
		"dish-mcp": func(ctx context.Context, next CallFunc, name string, args map[string]any) (*CallResult, error) {
			called = true
			return &CallResult{}, nil
		},
	}

	providers, err := LoadProviders(path, hooks, slog.Default())
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}

	for _, p := range providers {
		switch p.Name() {
		case "dish-mcp":
			if p.hook == nil {
				t.Error("expected hook bound to dish-mcp")
			}
			if _, err := p.Call(context.Background(), "book_room", nil); err != nil {
				t.Errorf("hooked Call() error = %v", err)
			}
			if !called {
				t.Error("expected hook to run on Call")
			}
		case "google-calendar":
			if p.hook != nil {
				t.Error("expected no hook on google-calendar")
			}
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"dish-mcp", "dish_mcp"},
		{"google-calendar", "google_calendar"},
		{"already_fine", "already_fine"},
		{"weird--name!!x", "weird_name_x"},
		{"-edges-", "edges"},
	}
	for _, tt := range tests {
		if got := NormalizePrefix(tt.name); got != tt.want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
