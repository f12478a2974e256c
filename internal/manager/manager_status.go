package manager

import (
	"context"
	"time"

	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
	"mediaflow/internal/workflow"
)

// Outcome records where the last processed instance ended up.
type Outcome struct {
	WorkflowID   string
	DefinitionID string
	Title        string
	State        workflow.State
	Operation    string
	Error        string
	At           time.Time
}

// StatusSummary represents lightweight manager diagnostics.
type StatusSummary struct {
	Running       bool
	Owner         string
	Workers       int
	Processed     int
	LastError     string
	LastOutcome   *Outcome
	Counts        map[workflow.State]int
	HandlerHealth []handler.Health
}

// Status returns the latest manager information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Owner:     m.owner,
		Workers:   m.workers,
		Processed: m.processed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastInstance != nil {
		copy := *m.lastInstance
		summary.LastOutcome = &copy
	}
	m.mu.RUnlock()

	counts, err := m.store.Counts(ctx)
	if err != nil {
		m.logger.Warn("failed to read workflow counts", logging.Error(err))
	}
	summary.Counts = counts
	if m.handlers != nil {
		summary.HandlerHealth = m.handlers.HealthCheck(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordOutcome(wi *workflow.Instance, err error) {
	out := &Outcome{
		WorkflowID:   wi.ID,
		DefinitionID: wi.DefinitionID,
		Title:        wi.Title,
		State:        wi.State,
		Operation:    operationLabel(wi),
		At:           m.clock(),
	}
	if err != nil {
		out.Error = err.Error()
	}
	m.mu.Lock()
	m.lastInstance = out
	m.processed++
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()
}

// operationLabel names the operation an instance stopped at: the failed one
// for a FAILED instance, the held one for a PAUSED instance.
func operationLabel(wi *workflow.Instance) string {
	if wi.State == workflow.StateFailed && len(wi.History) > 0 {
		if op := wi.History[len(wi.History)-1]; op != nil {
			return op.Key().String()
		}
	}
	if op := wi.Current(); op != nil {
		return op.Key().String()
	}
	return ""
}
