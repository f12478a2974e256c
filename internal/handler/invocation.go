package handler

import (
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"mediaflow/internal/condition"
	"mediaflow/internal/definition"
	"mediaflow/internal/logging"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/workflow"
)

// Invocation is the read-only view of a workflow a handler receives. The media
// package and properties are copies; changes only reach the instance through
// the returned Result.
type Invocation struct {
	WorkflowID   string
	DefinitionID string
	Operation    workflow.Key
	// Attempt is 1 for the first dispatch and grows with each retry.
	Attempt      int
	MediaPackage *mediapackage.MediaPackage
	Properties   map[string]string
	Logger       *slog.Logger

	config  definition.Configuration
	bindJob func(string)
}

// NewInvocation snapshots wi for a call into the handler of op.
// Configuration values have ${name} placeholders replaced from the run
// variables. bindJob may be nil.
func NewInvocation(wi *workflow.Instance, op *workflow.Operation, logger *slog.Logger, bindJob func(string)) *Invocation {
	if logger == nil {
		logger = logging.NewNop()
	}
	vars := wi.Variables()
	resolved := op.Configuration()
	for _, key := range resolved.Keys() {
		value, _ := resolved.Get(key)
		resolved.Set(key, condition.Substitute(value, vars, ""))
	}
	var mp *mediapackage.MediaPackage
	if wi.MediaPackage != nil {
		mp = wi.MediaPackage.Clone()
	}
	return &Invocation{
		WorkflowID:   wi.ID,
		DefinitionID: wi.DefinitionID,
		Operation:    op.Key(),
		Attempt:      op.FailedAttempts() + 1,
		MediaPackage: mp,
		Properties:   maps.Clone(vars),
		Logger:       logger,
		config:       resolved,
		bindJob:      bindJob,
	}
}

// Config returns the resolved value of key.
func (i *Invocation) Config(key string) (string, bool) {
	value, ok := i.config.Get(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// ConfigOr returns the value of key, or fallback when unset or blank.
func (i *Invocation) ConfigOr(key, fallback string) string {
	if value, ok := i.Config(key); ok && value != "" {
		return value
	}
	return fallback
}

// ConfigList splits a comma-separated option.
func (i *Invocation) ConfigList(key string) []string {
	value, _ := i.Config(key)
	return mediapackage.SplitList(value)
}

// ConfigBool parses a boolean option; unset or unparsable values yield fallback.
func (i *Invocation) ConfigBool(key string, fallback bool) bool {
	value, ok := i.Config(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Configuration returns a copy of the resolved configuration.
func (i *Invocation) Configuration() definition.Configuration {
	return i.config.Clone()
}

// BindJob tells the engine which job currently backs the operation.
func (i *Invocation) BindJob(id string) {
	if i.bindJob != nil && id != "" {
		i.bindJob(id)
	}
}
