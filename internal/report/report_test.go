package report_test

import (
	"testing"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/report"
	"mediaflow/internal/workflow"
)

func instanceAt(t *testing.T, def *definition.Workflow, state workflow.State, position int) *workflow.Instance {
	t.Helper()
	wi, err := workflow.NewInstance(def, nil, nil, time.Now())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	wi.State = state
	wi.Position = position
	return wi
}

func TestComputeRunningMatchesOperationSum(t *testing.T) {
	publish := &definition.Workflow{ID: "publish", Operations: []definition.Operation{
		definition.MustOperation("inspect"),
		definition.MustOperation("encode"),
		definition.MustOperation("encode"),
	}}
	retract := &definition.Workflow{ID: "retract", Operations: []definition.Operation{
		definition.MustOperation("retract"),
	}}
	instances := []*workflow.Instance{
		instanceAt(t, publish, workflow.StateRunning, 0),
		instanceAt(t, publish, workflow.StateRunning, 1),
		instanceAt(t, publish, workflow.StateRunning, 2),
		instanceAt(t, publish, workflow.StateRunning, 2),
		instanceAt(t, publish, workflow.StatePaused, 1),
		instanceAt(t, publish, workflow.StateSucceeded, 3),
		instanceAt(t, publish, workflow.StateStopped, 1),
		instanceAt(t, retract, workflow.StateFailed, 0),
		instanceAt(t, retract, workflow.StateFailing, 0),
		instanceAt(t, retract, workflow.StateInstantiated, 0),
	}
	before := instances[1].Position

	stats := report.Compute(instances)
	if stats.Total != 10 || stats.Running != 4 || stats.Paused != 1 || stats.Finished != 1 ||
		stats.Stopped != 1 || stats.Failed != 1 || stats.Failing != 1 || stats.Instantiated != 1 {
		t.Fatalf("unexpected system counts %+v", stats.Counts)
	}
	def, ok := stats.Definition("publish")
	if !ok {
		t.Fatal("publish report missing")
	}
	if def.Running != 4 || def.Total != 7 {
		t.Fatalf("publish counts %+v", def.Counts)
	}
	sumRunning, sumTotal := 0, 0
	for _, op := range def.Operations {
		sumRunning += op.Running
		sumTotal += op.Total
	}
	if sumRunning != def.Running || sumTotal != def.Total {
		t.Fatalf("operation sums running=%d total=%d, definition %+v", sumRunning, sumTotal, def.Counts)
	}
	if len(def.Operations) != 3 {
		t.Fatalf("expected encode rows to stay separate by position, got %+v", def.Operations)
	}
	last := def.Operations[2]
	if last.ID != "encode" || last.Position != 2 || last.Running != 2 || last.Finished != 1 {
		t.Fatalf("last row %+v", last)
	}
	if instances[1].Position != before {
		t.Fatal("Compute must not mutate instances")
	}
}

func TestComputeEmpty(t *testing.T) {
	stats := report.Compute(nil)
	if stats.Total != 0 || len(stats.Definitions) != 0 {
		t.Fatalf("unexpected %+v", stats)
	}
}

func TestComputeFilesRedirectedInstanceUnderFailedOperation(t *testing.T) {
	primary := &definition.Workflow{ID: "main", Operations: []definition.Operation{
		definition.MustOperation("inspect"),
		definition.MustOperation("approve"),
		definition.MustOperation("publish"),
	}}
	cleanup := &definition.Workflow{ID: "cleanup-wf", Operations: []definition.Operation{
		definition.MustOperation("cleanup"),
		definition.MustOperation("notify"),
	}}
	wi := instanceAt(t, primary, workflow.StateRunning, 1)
	if err := wi.Redirect(cleanup); err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	wi.Position = 1
	wi.State = workflow.StatePaused

	stats := report.Compute([]*workflow.Instance{wi})
	def, ok := stats.Definition("main")
	if !ok {
		t.Fatal("main report missing")
	}
	if len(def.Operations) != 1 {
		t.Fatalf("rows %+v", def.Operations)
	}
	row := def.Operations[0]
	if row.ID != "approve" || row.Position != 1 || row.Paused != 1 || row.Total != 1 {
		t.Fatalf("row %+v", row)
	}
	if _, ok := stats.Definition("cleanup-wf"); ok {
		t.Fatal("exception workflow should not get its own report")
	}
}
