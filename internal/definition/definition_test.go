package definition_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mediaflow/internal/condition"
	"mediaflow/internal/definition"
	"mediaflow/internal/services"
)

func TestNewOperationRejectsNonPositiveMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1, -10} {
		_, err := definition.NewOperation("encode", definition.WithMaxAttempts(n))
		if err == nil {
			t.Fatalf("expected max attempts %d to be rejected", n)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	}
}

func TestNewOperationDefaults(t *testing.T) {
	op, err := definition.NewOperation(" inspect ")
	if err != nil {
		t.Fatalf("NewOperation: %v", err)
	}
	if op.ID != "inspect" || op.MaxAttempts != 1 || !op.FailWorkflowOnException {
		t.Fatalf("unexpected defaults: %+v", op)
	}
	if _, err := definition.NewOperation(""); err == nil {
		t.Fatal("expected empty id to be rejected")
	}
}

func TestConfigurationKeepsOrder(t *testing.T) {
	var c definition.Configuration
	c.Set("b", "1")
	c.Set("a", "2")
	c.Set("b", "3")
	c.Merge(map[string]string{"d": "4", "c": "5"})
	if got := strings.Join(c.Keys(), ","); got != "b,a,c,d" {
		t.Fatalf("unexpected key order %q", got)
	}
	if v, _ := c.Get("b"); v != "3" {
		t.Fatalf("expected overwritten value, got %q", v)
	}
	clone := c.Clone()
	clone.Set("a", "changed")
	if v, _ := c.Get("a"); v != "2" {
		t.Fatal("expected clone to be independent")
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok || c.Len() != 3 {
		t.Fatalf("expected a deleted, got %v", c.Keys())
	}
}

func sampleWorkflow() *definition.Workflow {
	return &definition.Workflow{
		ID:          "publish",
		Title:       "Publish",
		Description: "Inspect, encode and distribute",
		Published:   true,
		Operations: []definition.Operation{
			definition.MustOperation("inspect", definition.WithDescription("Inspect tracks")),
			definition.MustOperation("encode",
				definition.WithMaxAttempts(3),
				definition.WithSkipCondition("skip_encode"),
				definition.WithExceptionHandler("cleanup"),
				definition.WithConfig("source-flavor", "presenter/source"),
				definition.WithConfig("target-tags", "engage,archive"),
			),
			definition.MustOperation("distribute", definition.WithFailOnError(false), definition.WithExecuteCondition("${publish}")),
		},
	}
}

func TestWorkflowJSONRoundTrip(t *testing.T) {
	original := sampleWorkflow()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded definition.Workflow
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(original, &decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, *original)
	}
	if !strings.Contains(string(data), `"fail-on-error":false`) || !strings.Contains(string(data), `"max-attempts":3`) {
		t.Fatalf("expected scalar attributes in %s", data)
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	for _, format := range []definition.Format{definition.FormatTOML, definition.FormatJSON} {
		original := sampleWorkflow()
		data, err := definition.Encode(original, format)
		if err != nil {
			t.Fatalf("%s encode: %v", format, err)
		}
		parsed, err := definition.Parse(data, format, 1)
		if err != nil {
			t.Fatalf("%s parse: %v", format, err)
		}
		if !reflect.DeepEqual(original, parsed) {
			t.Fatalf("%s round trip mismatch:\n got %+v\nwant %+v", format, parsed, original)
		}
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	doc := `
id = "ingest"
title = "Ingest"

[[operations]]
id = "inspect"

[[operations]]
id = "encode"
max_attempts = 2
fail_on_error = false
configuration = [
  { key = "profile", value = "h264" },
  { key = "source-flavor", value = "*/source" },
]
`
	def, err := definition.Parse([]byte(doc), definition.FormatTOML, 3)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Operations[0].MaxAttempts != 3 || !def.Operations[0].FailWorkflowOnException {
		t.Fatalf("unexpected defaults: %+v", def.Operations[0])
	}
	encode := def.Operations[1]
	if encode.MaxAttempts != 2 || encode.FailWorkflowOnException {
		t.Fatalf("unexpected explicit values: %+v", encode)
	}
	if got := strings.Join(encode.Configuration.Keys(), ","); got != "profile,source-flavor" {
		t.Fatalf("unexpected configuration order %q", got)
	}
}

func TestParseExplicitZeroAttemptsFailsValidation(t *testing.T) {
	doc := `{"id":"bad","operations":[{"id":"encode","max-attempts":0}]}`
	def, err := definition.Parse([]byte(doc), definition.FormatJSON, 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := def.Validate(nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOperationUnmarshalRejectsZeroAttempts(t *testing.T) {
	var op definition.Operation
	err := json.Unmarshal([]byte(`{"id":"encode","max-attempts":0}`), &op)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"id":"encode"}`), &op); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if op.MaxAttempts != definition.DefaultMaxAttempts {
		t.Fatalf("max attempts = %d", op.MaxAttempts)
	}
}

func TestValidateRejectsMalformedCondition(t *testing.T) {
	def := sampleWorkflow()
	def.Operations[0].ExecuteCondition = "publish &&"
	err := def.Validate(condition.NewEvaluator())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "position 0") {
		t.Fatalf("expected position in error, got %v", err)
	}
}

func TestCatalogLoadDir(t *testing.T) {
	dir := t.TempDir()
	publish, err := definition.Encode(sampleWorkflow(), definition.FormatTOML)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cleanup := `{"id":"cleanup","title":"Cleanup","operations":[{"id":"cleanup"}]}`
	writeFile(t, filepath.Join(dir, "publish.toml"), publish)
	writeFile(t, filepath.Join(dir, "cleanup.json"), []byte(cleanup))
	writeFile(t, filepath.Join(dir, "README.md"), []byte("ignored"))

	catalog := definition.NewCatalog(condition.NewEvaluator())
	n, err := catalog.LoadDir(dir, 1, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 definitions, got %d", n)
	}
	list := catalog.List()
	if len(list) != 2 || list[0].ID != "cleanup" || list[1].ID != "publish" {
		t.Fatalf("unexpected list order")
	}

	got, ok := catalog.Get("publish")
	if !ok {
		t.Fatal("expected publish definition")
	}
	got.Operations[0].ID = "mutated"
	again, _ := catalog.Get("publish")
	if again.Operations[0].ID != "inspect" {
		t.Fatal("expected catalog copies to be isolated")
	}
}

func TestCatalogRejectsDuplicatesAndDanglingHandlers(t *testing.T) {
	catalog := definition.NewCatalog(nil)
	if err := catalog.Register(sampleWorkflow()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := catalog.Register(sampleWorkflow()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	err := catalog.Validate()
	if err == nil || !strings.Contains(err.Error(), `unknown exception handler workflow "cleanup"`) {
		t.Fatalf("expected dangling exception handler error, got %v", err)
	}
}

func TestCatalogLoadDirMissingDirectory(t *testing.T) {
	catalog := definition.NewCatalog(nil)
	n, err := catalog.LoadDir(filepath.Join(t.TempDir(), "absent"), 1, nil)
	if err != nil || n != 0 {
		t.Fatalf("expected empty load, got %d %v", n, err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
