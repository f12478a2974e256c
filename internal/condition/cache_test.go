package condition

import (
	"strconv"
	"testing"
)

func TestSubstitutedSourcesAreNotCached(t *testing.T) {
	ev := NewEvaluator()
	for i := range 50 {
		vars := map[string]string{"duration": strconv.Itoa(i)}
		got, err := ev.Evaluate("${duration} >= 25", vars, false)
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
		if got != (i >= 25) {
			t.Fatalf("evaluate %d = %v", i, got)
		}
	}
	if _, err := ev.Evaluate("duration >= 25", map[string]string{"duration": "30"}, false); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := ev.Check("${duration} >= 25"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if n := len(ev.programs); n != 2 {
		t.Fatalf("cached programs = %d, want 2", n)
	}
}
