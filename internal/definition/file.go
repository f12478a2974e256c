package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mediaflow/internal/services"
)

// Format names a definition file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

type workflowFile struct {
	ID          string          `json:"id" toml:"id"`
	Title       string          `json:"title,omitempty" toml:"title,omitempty"`
	Description string          `json:"description,omitempty" toml:"description,omitempty"`
	Published   bool            `json:"published" toml:"published"`
	Operations  []operationFile `json:"operations" toml:"operations"`
}

type operationFile struct {
	ID                        string  `json:"id" toml:"id"`
	Description               string  `json:"description,omitempty" toml:"description,omitempty"`
	If                        string  `json:"if,omitempty" toml:"if,omitempty"`
	Unless                    string  `json:"unless,omitempty" toml:"unless,omitempty"`
	ExceptionHandlingWorkflow string  `json:"exception-handler-workflow,omitempty" toml:"exception_handler_workflow,omitempty"`
	FailOnError               *bool   `json:"fail-on-error,omitempty" toml:"fail_on_error,omitempty"`
	MaxAttempts               *int    `json:"max-attempts,omitempty" toml:"max_attempts,omitempty"`
	Configuration             []Entry `json:"configurations,omitempty" toml:"configuration,omitempty"`
}

func (o Operation) file() operationFile {
	fail := o.FailWorkflowOnException
	attempts := o.MaxAttempts
	return operationFile{
		ID:                        o.ID,
		Description:               o.Description,
		If:                        o.ExecuteCondition,
		Unless:                    o.SkipCondition,
		ExceptionHandlingWorkflow: o.ExceptionHandlingWorkflow,
		FailOnError:               &fail,
		MaxAttempts:               &attempts,
		Configuration:             o.Configuration.Entries(),
	}
}

func (f operationFile) operation(defaultMaxAttempts int) Operation {
	op := Operation{
		ID:                        strings.TrimSpace(f.ID),
		Description:               f.Description,
		ExecuteCondition:          f.If,
		SkipCondition:             f.Unless,
		ExceptionHandlingWorkflow: strings.TrimSpace(f.ExceptionHandlingWorkflow),
		FailWorkflowOnException:   true,
		MaxAttempts:               defaultMaxAttempts,
		Configuration:             NewConfiguration(f.Configuration...),
	}
	if f.FailOnError != nil {
		op.FailWorkflowOnException = *f.FailOnError
	}
	if f.MaxAttempts != nil {
		op.MaxAttempts = *f.MaxAttempts
	}
	return op
}

func (w *Workflow) file() workflowFile {
	out := workflowFile{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Published:   w.Published,
		Operations:  make([]operationFile, len(w.Operations)),
	}
	for i, op := range w.Operations {
		out.Operations[i] = op.file()
	}
	return out
}

func (f workflowFile) workflow(defaultMaxAttempts int) *Workflow {
	out := &Workflow{
		ID:          strings.TrimSpace(f.ID),
		Title:       f.Title,
		Description: f.Description,
		Published:   f.Published,
		Operations:  make([]Operation, len(f.Operations)),
	}
	for i, op := range f.Operations {
		out.Operations[i] = op.operation(defaultMaxAttempts)
	}
	return out
}

// Parse decodes one workflow definition. Operations that omit max attempts
// get defaultMaxAttempts; the result is not validated.
func Parse(data []byte, format Format, defaultMaxAttempts int) (*Workflow, error) {
	if defaultMaxAttempts == 0 {
		defaultMaxAttempts = DefaultMaxAttempts
	}
	var f workflowFile
	switch format {
	case FormatTOML:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&f); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "definition", "parse", "decode toml", err)
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&f); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "definition", "parse", "decode json", err)
		}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "definition", "parse", fmt.Sprintf("unsupported format %q", format), nil)
	}
	return f.workflow(defaultMaxAttempts), nil
}

// Encode renders a workflow definition in format.
func Encode(w *Workflow, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(w.file())
	case FormatJSON:
		return json.MarshalIndent(w.file(), "", "  ")
	default:
		return nil, services.Wrap(services.ErrConfiguration, "definition", "encode", fmt.Sprintf("unsupported format %q", format), nil)
	}
}
