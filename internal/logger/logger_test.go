package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"  WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := LevelFromEnv(tc.in); got != tc.want {
			t.Errorf("LevelFromEnv(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No request ID set
	if rid := RequestID(ctx); rid != "" {
		t.Errorf("expected empty request id, got %q", rid)
	}

	// Set and retrieve
	ctx = WithRequestID(ctx, "test-req-123")
	if rid := RequestID(ctx); rid != "test-req-123" {
		t.Errorf("expected 'test-req-123', got %q", rid)
	}
}

func TestGenerateRequestID(t *testing.T) {
	ts := time.Date(2026, 2, 2, 10, 30, 0, 123456789, time.UTC)
	rid := GenerateRequestID("summary", ts)

	if rid == "" {
		t.Fatal("expected non-empty request id")
	}
	if !strings.HasPrefix(rid, "summary-") {
		t.Errorf("expected request id to start with 'summary-', got %s", rid)
	}
	// Verify it contains the nano timestamp
	if !strings.Contains(rid, "123456789") {
		t.Errorf("expected request id to contain nanoseconds, got %s", rid)
	}
}

func TestLogWithRequest(t *testing.T) {
	ctx := context.Background()

	// No request ID
	attrs := LogWithRequest(ctx)
	if attrs != nil {
		t.Errorf("expected nil attrs when no request id, got %v", attrs)
	}

	// With request ID set
	ctx = WithRequestID(ctx, "abc-123")
	attrs = LogWithRequest(ctx)
	if len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with request id set")
	}
}
