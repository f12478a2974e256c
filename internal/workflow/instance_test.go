package workflow_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

func TestNewInstanceDeepCopies(t *testing.T) {
	def := &definition.Workflow{
		ID: "publish",
		Operations: []definition.Operation{
			definition.MustOperation("encode", definition.WithConfig("profile", "h264")),
		},
	}
	first, err := workflow.NewInstance(def, nil, nil, now)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	second, err := workflow.NewInstance(def, nil, nil, now)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct instance ids")
	}
	if first.Title != "publish" {
		t.Fatalf("expected id as title fallback, got %q", first.Title)
	}

	def.Operations[0].Configuration.Set("profile", "av1")
	if err := first.Operations[0].Begin(now); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := first.Operations[0].Pause("", ""); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := first.Operations[0].Resume(map[string]string{"profile": "vp9"}); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	cfg := second.Operations[0].Configuration()
	if v, _ := cfg.Get("profile"); v != "h264" {
		t.Fatalf("expected untouched configuration, got %q", v)
	}
	if second.Operations[0].State() != workflow.OperationInstantiated {
		t.Fatal("expected sibling instance untouched")
	}
}

func TestNewInstanceRejectsInvalidDefinition(t *testing.T) {
	def := &definition.Workflow{ID: "bad", Operations: []definition.Operation{{ID: "encode", MaxAttempts: 0}}}
	if _, err := workflow.NewInstance(def, nil, nil, now); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestInstanceJSONRoundTrip(t *testing.T) {
	wi := newInstance(t,
		definition.MustOperation("inspect"),
		definition.MustOperation("approve", definition.WithMaxAttempts(2), definition.WithExceptionHandler("cleanup")),
	)
	yes := true
	wi.Operations[0].SetFlags(&yes, nil)
	if err := wi.Operations[0].Begin(now); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := wi.Operations[0].Succeed(now.Add(time.Second)); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	wi.Position = 1
	if err := wi.Operations[1].Begin(now); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := wi.Operations[1].Pause("http://hold/approve", "Approve"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	wi.State = workflow.StatePaused

	data, err := json.Marshal(wi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded workflow.Instance
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != wi.ID || decoded.State != workflow.StatePaused || decoded.Position != 1 {
		t.Fatalf("unexpected decoded header: %+v", decoded)
	}
	if !decoded.DateCreated.Equal(wi.DateCreated) {
		t.Fatalf("created mismatch: %v vs %v", decoded.DateCreated, wi.DateCreated)
	}
	for idx, op := range wi.Operations {
		got := decoded.Operations[idx]
		if !got.Equal(op) || got.State() != op.State() || got.MaxAttempts() != op.MaxAttempts() {
			t.Fatalf("operation %d mismatch", idx)
		}
		if got.HoldStateUserInterfaceURL() != op.HoldStateUserInterfaceURL() {
			t.Fatalf("hold url mismatch at %d", idx)
		}
	}
	if flag := decoded.Operations[0].Abortable(); flag == nil || !*flag {
		t.Fatal("expected abortable flag preserved")
	}
	if decoded.Operations[0].Continuable() != nil {
		t.Fatal("expected unset continuable flag to stay unset")
	}
	active := decoded.Active()
	if active == nil || !active.Equal(wi.Operations[1]) {
		t.Fatal("expected rebuilt instance to recognize the paused operation")
	}
	if decoded.Operations[1].ExceptionHandlingWorkflow() != "cleanup" {
		t.Fatal("expected exception handler preserved")
	}
}

func TestRedirectReplacesRemainingOperations(t *testing.T) {
	wi := newInstance(t, definition.MustOperation("inspect"), definition.MustOperation("encode"), definition.MustOperation("distribute"))
	wi.Position = 1
	cleanup := &definition.Workflow{ID: "cleanup", Operations: []definition.Operation{
		definition.MustOperation("notify"),
		definition.MustOperation("cleanup"),
	}}
	if err := wi.Redirect(cleanup); err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if wi.State != workflow.StateFailing || wi.Position != 0 || !wi.Redirected() {
		t.Fatalf("unexpected state after redirect: %s pos=%d", wi.State, wi.Position)
	}
	if len(wi.Operations) != 2 || wi.Operations[0].TemplateID() != "notify" || wi.Operations[1].Position() != 1 {
		t.Fatal("expected cleanup operations positioned from 0")
	}
	if len(wi.History) != 2 || wi.History[1].TemplateID() != "encode" {
		t.Fatal("expected executed prefix moved to history")
	}
}

func TestCheckDetectsTwoActiveOperations(t *testing.T) {
	wi := newInstance(t, definition.MustOperation("a"), definition.MustOperation("b"))
	if err := wi.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	_ = wi.Operations[0].Begin(now)
	_ = wi.Operations[1].Begin(now)
	if err := wi.Check(); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestParseStateAndTerminal(t *testing.T) {
	s, ok := workflow.ParseState(" paused ")
	if !ok || s != workflow.StatePaused {
		t.Fatalf("unexpected parse result %q %v", s, ok)
	}
	if _, ok := workflow.ParseState("DONE"); ok {
		t.Fatal("expected unknown state")
	}
	for _, st := range workflow.AllStates() {
		want := st == workflow.StateStopped || st == workflow.StateSucceeded || st == workflow.StateFailed
		if st.IsTerminal() != want {
			t.Fatalf("IsTerminal(%s) = %v", st, st.IsTerminal())
		}
	}
}

func TestSetPagesAndJSON(t *testing.T) {
	set := workflow.Set{StartPage: 1, Count: 10, TotalCount: 21, SearchTime: 15 * time.Millisecond}
	if set.Pages() != 3 {
		t.Fatalf("expected 3 pages, got %d", set.Pages())
	}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["searchTime"].(float64) != 15 || decoded["totalCount"].(float64) != 21 {
		t.Fatalf("unexpected set json %s", data)
	}
}
