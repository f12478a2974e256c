package condition_test

import (
	"errors"
	"testing"

	"mediaflow/internal/condition"
	"mediaflow/internal/services"
)

func TestEvaluate(t *testing.T) {
	ev := condition.NewEvaluator()
	vars := map[string]string{
		"publish":        "true",
		"retract":        "FALSE",
		"duration":       "90",
		"language":       "en",
		"publish-engage": "false",
	}
	tests := []struct {
		expr string
		want bool
	}{
		{"publish", true},
		{"${publish}", true},
		{"!retract", true},
		{"duration > 60 && language == \"en\"", true},
		{"duration > 120", false},
		{"publish_engage", false},
		{"missing == nil", true},
		{"${missing} == nil", true},
		{"\"${language}\" == \"en\"", true},
	}
	for _, tt := range tests {
		got, err := ev.Evaluate(tt.expr, vars, false)
		if err != nil {
			t.Fatalf("Evaluate(%q) returned error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateEmptyUsesFallback(t *testing.T) {
	ev := condition.NewEvaluator()
	if got, err := ev.Evaluate("  ", nil, true); err != nil || !got {
		t.Fatalf("expected fallback true, got %v %v", got, err)
	}
	if got, err := ev.Evaluate("", nil, false); err != nil || got {
		t.Fatalf("expected fallback false, got %v %v", got, err)
	}
}

func TestCheckRejectsMalformed(t *testing.T) {
	ev := condition.NewEvaluator()
	err := ev.Check("publish ==")
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := ev.Check("${flag} && duration > 10"); err != nil {
		t.Fatalf("expected placeholder expression to compile, got %v", err)
	}
}

func TestEvaluateNonBooleanIsConfigurationError(t *testing.T) {
	ev := condition.NewEvaluator()
	_, err := ev.Evaluate("language", map[string]string{"language": "en"}, false)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSubstitute(t *testing.T) {
	got := condition.Substitute("presenter/${target}", map[string]string{"target": "delivery"}, "")
	if got != "presenter/delivery" {
		t.Fatalf("unexpected substitution %q", got)
	}
	if got := condition.Substitute("${absent}x", nil, ""); got != "x" {
		t.Fatalf("unexpected substitution for missing var %q", got)
	}
}
