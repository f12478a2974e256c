package services_test

import (
	"errors"
	"strings"
	"testing"

	"mediaflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "job", "await", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"job", "await", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindAndRejection(t *testing.T) {
	tests := []struct {
		err       error
		kind      string
		rejection bool
	}{
		{services.Wrap(services.ErrConfiguration, "definition", "validate", "bad", nil), "configuration", true},
		{services.Wrap(services.ErrInvalidState, "engine", "resume", "not paused", nil), "invalid_state", true},
		{services.Wrap(services.ErrTimeout, "job", "await", "deadline", nil), "timeout", false},
		{errors.New("plain"), "unknown", false},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.kind)
		}
		if got := services.IsRejection(tt.err); got != tt.rejection {
			t.Fatalf("IsRejection(%v) = %v, want %v", tt.err, got, tt.rejection)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil error")
	}
}
