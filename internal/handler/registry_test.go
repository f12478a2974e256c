package handler_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/handler"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

type stubHandler struct {
	keys     map[string]string
	required []string
	health   *handler.Health
}

func (s stubHandler) Start(context.Context, *handler.Invocation) (handler.Result, error) {
	return handler.Continue(nil), nil
}

func (s stubHandler) ConfigurationKeys() map[string]string { return s.keys }

type requiredHandler struct{ stubHandler }

func (r requiredHandler) RequiredConfigurationKeys() []string { return r.required }

type checkedHandler struct{ stubHandler }

func (c checkedHandler) HealthCheck(context.Context) handler.Health { return *c.health }

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := handler.NewRegistry()
	if err := reg.Register("encode", stubHandler{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("encode", stubHandler{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if err := reg.Register(" ", stubHandler{}); err == nil {
		t.Fatal("expected blank id rejection")
	}
	if _, ok := reg.Lookup("encode"); !ok {
		t.Fatal("expected lookup to succeed")
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestValidateDefinition(t *testing.T) {
	reg := handler.NewRegistry()
	_ = reg.Register("tag", stubHandler{keys: map[string]string{"source-flavors": "flavors to match", "target-tags": "tags to apply"}})
	_ = reg.Register("defaults", stubHandler{keys: map[string]string{handler.AnyKey: "any property"}})
	_ = reg.Register("publish", requiredHandler{stubHandler{keys: map[string]string{"channel": "target channel"}, required: []string{"channel"}}})

	good := &definition.Workflow{ID: "ok", Operations: []definition.Operation{
		definition.MustOperation("tag", definition.WithConfig("target-tags", "+engage")),
		definition.MustOperation("defaults", definition.WithConfig("anything", "goes")),
		definition.MustOperation("publish", definition.WithConfig("channel", "engage")),
	}}
	if err := reg.ValidateDefinition(good); err != nil {
		t.Fatalf("ValidateDefinition: %v", err)
	}

	bad := &definition.Workflow{ID: "bad", Operations: []definition.Operation{
		definition.MustOperation("tag", definition.WithConfig("target-flavour", "x/y")),
		definition.MustOperation("publish"),
		definition.MustOperation("unknown"),
	}}
	err := reg.ValidateDefinition(bad)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, fragment := range []string{"unknown configuration keys target-flavour", "missing required configuration keys channel", `no handler registered for operation "unknown"`, "position 2"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	reg := handler.NewRegistry()
	down := handler.Unhealthy("", "ffprobe missing")
	_ = reg.Register("inspect", checkedHandler{stubHandler{health: &down}})
	_ = reg.Register("tag", stubHandler{})

	results := reg.HealthCheck(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "inspect" || results[0].Ready {
		t.Fatalf("unexpected inspect health %+v", results[0])
	}
	if !results[1].Ready {
		t.Fatalf("expected tag healthy, got %+v", results[1])
	}
}

func TestInvocationResolvesConfiguration(t *testing.T) {
	def := &definition.Workflow{ID: "publish", Operations: []definition.Operation{
		definition.MustOperation("tag",
			definition.WithConfig("target-flavor", "presenter/${target}"),
			definition.WithConfig("target-tags", " engage, archive ,"),
			definition.WithConfig("copy", "true"),
		),
	}}
	mp := &mediapackage.MediaPackage{ID: "mp-1"}
	wi, err := workflow.NewInstance(def, mp, map[string]string{"target": "delivery"}, time.Now())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}

	var bound string
	inv := handler.NewInvocation(wi, wi.Operations[0], nil, func(id string) { bound = id })
	if v, _ := inv.Config("target-flavor"); v != "presenter/delivery" {
		t.Fatalf("unexpected resolved flavor %q", v)
	}
	if got := inv.ConfigList("target-tags"); len(got) != 2 || got[1] != "archive" {
		t.Fatalf("unexpected tag list %v", got)
	}
	if !inv.ConfigBool("copy", false) || inv.ConfigBool("absent", false) {
		t.Fatal("unexpected bool parsing")
	}
	if inv.ConfigOr("absent", "fallback") != "fallback" {
		t.Fatal("expected fallback")
	}
	if inv.Attempt != 1 || inv.Operation.TemplateID != "tag" {
		t.Fatalf("unexpected invocation header %+v", inv.Operation)
	}
	inv.MediaPackage.Title = "changed"
	if wi.MediaPackage.Title == "changed" {
		t.Fatal("expected invocation media package to be a copy")
	}
	inv.BindJob("job-1")
	if bound != "job-1" {
		t.Fatalf("expected job binding callback, got %q", bound)
	}
}
