// Package condition evaluates the execute and skip conditions attached to
// operation definitions.
//
// Conditions are expr-lang expressions evaluated against the workflow's run
// variables. Before compilation every ${name} placeholder is replaced with the
// variable's raw value, so both `publish == true` and `${publish}` work.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"mediaflow/internal/services"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// undefinedName is never defined in an environment, so it evaluates to nil
// while still type-checking like any other variable.
const undefinedName = "__undefined"

// Evaluator compiles and caches condition programs. Only expressions that
// reach the compiler unchanged are cached; a substituted source depends on run
// variables and is compiled per evaluation. It is safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewEvaluator returns an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Check compiles expression without variables so malformed conditions are
// rejected when a definition is loaded rather than when it runs.
func (e *Evaluator) Check(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	source := placeholderPattern.ReplaceAllString(expression, undefinedName)
	if _, err := e.program(source, true); err != nil {
		return services.Wrap(services.ErrConfiguration, "condition", "compile", fmt.Sprintf("invalid expression %q", expression), err)
	}
	return nil
}

// Evaluate runs expression against vars. An empty expression yields fallback.
func (e *Evaluator) Evaluate(expression string, vars map[string]string, fallback bool) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return fallback, nil
	}
	source := Substitute(expression, vars, undefinedName)
	program, err := e.program(source, source == expression)
	if err != nil {
		return false, services.Wrap(services.ErrConfiguration, "condition", "compile", fmt.Sprintf("invalid expression %q", expression), err)
	}
	out, err := expr.Run(program, Env(vars))
	if err != nil {
		return false, services.Wrap(services.ErrConfiguration, "condition", "evaluate", fmt.Sprintf("expression %q", expression), err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, services.Wrap(services.ErrConfiguration, "condition", "evaluate", fmt.Sprintf("expression %q returned %T, want bool", expression, out), nil)
	}
	return result, nil
}

func (e *Evaluator) program(source string, cache bool) (*vm.Program, error) {
	if !cache {
		return compile(source)
	}
	e.mu.RLock()
	if prog, ok := e.programs[source]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if prog, ok := e.programs[source]; ok {
		return prog, nil
	}
	prog, err := compile(source)
	if err != nil {
		return nil, err
	}
	e.programs[source] = prog
	return prog, nil
}

func compile(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
}

// Substitute replaces ${name} placeholders with the value of name in vars, or
// with missing when name is undefined.
func Substitute(value string, vars map[string]string, missing string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-1])
		if v, ok := vars[name]; ok {
			return v
		}
		return missing
	})
}

// Env converts string variables into an expression environment. Boolean and
// numeric strings become typed values; names containing '-' or '.' are also
// exposed with those characters replaced by '_'.
func Env(vars map[string]string) map[string]any {
	env := make(map[string]any, len(vars))
	for name, raw := range vars {
		value := typed(raw)
		env[name] = value
		if alias := identifier(name); alias != name {
			if _, taken := vars[alias]; !taken {
				env[alias] = value
			}
		}
	}
	return env
}

func typed(raw string) any {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return raw
}

func identifier(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}
