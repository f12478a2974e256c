// Package report computes read-only workflow statistics.
package report

import (
	"sort"

	"mediaflow/internal/workflow"
)

// Counts tallies instances by state. Finished is the number of SUCCEEDED
// instances; Stopped and Failed stay separate so a requested stop is never
// mistaken for a fatal failure.
type Counts struct {
	Total        int `json:"total"`
	Instantiated int `json:"instantiated"`
	Running      int `json:"running"`
	Paused       int `json:"paused"`
	Stopped      int `json:"stopped"`
	Finished     int `json:"finished"`
	Failing      int `json:"failing"`
	Failed       int `json:"failed"`
}

// Add counts one instance in state.
func (c *Counts) Add(state workflow.State) {
	c.Total++
	switch state {
	case workflow.StateInstantiated:
		c.Instantiated++
	case workflow.StateRunning:
		c.Running++
	case workflow.StatePaused:
		c.Paused++
	case workflow.StateStopped:
		c.Stopped++
	case workflow.StateSucceeded:
		c.Finished++
	case workflow.StateFailing:
		c.Failing++
	case workflow.StateFailed:
		c.Failed++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Total += other.Total
	c.Instantiated += other.Instantiated
	c.Running += other.Running
	c.Paused += other.Paused
	c.Stopped += other.Stopped
	c.Finished += other.Finished
	c.Failing += other.Failing
	c.Failed += other.Failed
}

// OperationReport counts the instances whose pointer sits on one operation.
type OperationReport struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Counts
}

// DefinitionReport counts the instances of one workflow definition.
type DefinitionReport struct {
	ID string `json:"id"`
	Counts
	Operations []OperationReport `json:"operations"`
}

// Statistics is the system-wide rollup.
type Statistics struct {
	Counts
	Definitions []DefinitionReport `json:"definitions"`
}

// Definition returns the report for id.
func (s Statistics) Definition(id string) (DefinitionReport, bool) {
	for _, d := range s.Definitions {
		if d.ID == id {
			return d, true
		}
	}
	return DefinitionReport{}, false
}

type operationKey struct {
	id       string
	position int
}

// Compute builds statistics without touching the instances. Each instance is
// counted once per granularity: per operation it is attributed to the
// operation its pointer is on, or the last one once the pointer has moved
// past the end. An instance handed to an exception workflow stays filed under
// the operation of its own definition that failed, so every row belongs to
// the definition it is listed under.
func Compute(instances []*workflow.Instance) Statistics {
	var stats Statistics
	definitions := make(map[string]*DefinitionReport)
	operations := make(map[string]map[operationKey]*OperationReport)

	for _, wi := range instances {
		if wi == nil {
			continue
		}
		stats.Add(wi.State)

		def, ok := definitions[wi.DefinitionID]
		if !ok {
			def = &DefinitionReport{ID: wi.DefinitionID}
			definitions[wi.DefinitionID] = def
			operations[wi.DefinitionID] = make(map[operationKey]*OperationReport)
		}
		def.Add(wi.State)

		op := attributed(wi)
		if op == nil {
			continue
		}
		key := operationKey{id: op.TemplateID(), position: op.Position()}
		row, ok := operations[wi.DefinitionID][key]
		if !ok {
			row = &OperationReport{ID: key.id, Position: key.position}
			operations[wi.DefinitionID][key] = row
		}
		row.Add(wi.State)
	}

	for id, def := range definitions {
		for _, row := range operations[id] {
			def.Operations = append(def.Operations, *row)
		}
		sort.Slice(def.Operations, func(i, j int) bool {
			a, b := def.Operations[i], def.Operations[j]
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.ID < b.ID
		})
		stats.Definitions = append(stats.Definitions, *def)
	}
	sort.Slice(stats.Definitions, func(i, j int) bool {
		return stats.Definitions[i].ID < stats.Definitions[j].ID
	})
	return stats
}

func attributed(wi *workflow.Instance) *workflow.Operation {
	if wi.Redirected() {
		// History opens with the definition's own operations up to the failed
		// one; a later redirect starts a new run at position 0.
		history := wi.History
		for j := range history {
			if j+1 == len(history) || history[j+1].Position() == 0 {
				return history[j]
			}
		}
	}
	if op := wi.Current(); op != nil {
		return op
	}
	if n := len(wi.Operations); n > 0 {
		return wi.Operations[n-1]
	}
	return nil
}
