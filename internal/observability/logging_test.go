package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record emitted at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn record missing")
	}
}

func TestNewLoggerDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	logger.Info("hello", "key", "value")

	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"anthropic key", "key is sk-ant-REDACTED"},
		{"jwt", "header eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig"},
		{"google access token", "got ya29.a0AfH6SMBexample_token_value"},
		{"cookie pair", "cookie=s%3Aabcdef12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input)
			if !strings.Contains(got, "[REDACTED]") {
				t.Errorf("Redact(%q) = %q, secret not scrubbed", tt.input, got)
			}
		})
	}

	if got := Redact("plain text with no secrets"); got != "plain text with no secrets" {
		t.Errorf("Redact altered benign text: %q", got)
	}
}

func TestLoggerRedactsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "text", Output: &buf})

	logger.Info("stored secret", "value", "sk-ant-REDACTED")

	out := buf.String()
	if strings.Contains(out, "sk-ant-REDACTED") {
		t.Errorf("secret leaked into log output: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("redaction marker missing: %q", out)
	}
}

func TestLoggerRedactsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "text", Output: &buf})

	logger.With("token", "ya29.a0AfH6SMBexample_token_value").Info("refreshed")

	if strings.Contains(buf.String(), "ya29.") {
		t.Errorf("secret leaked via With attrs: %q", buf.String())
	}
}
