package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/config"
	"mediaflow/internal/engine"
	"mediaflow/internal/handler"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/store"
)

// Manager coordinates workers that claim and advance stored instances.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	handlers     *handler.Registry
	engine       *engine.Engine
	logger       *slog.Logger
	notifier     notifications.Service
	owner        string
	workers      int
	pollInterval time.Duration
	clock        func() time.Time

	heartbeat *HeartbeatMonitor

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	lastErr      error
	lastInstance *Outcome
	processed    int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithNotifier replaces the ntfy service built from the config.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithOwner sets the claim owner label. Defaults to host-pid-uuid.
func WithOwner(owner string) Option {
	return func(m *Manager) {
		if owner != "" {
			m.owner = owner
		}
	}
}

// WithClock overrides time.Now for the engine and heartbeat cutoffs.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// New constructs a manager over st. Handlers and definitions are shared by
// every worker; definitions resolves exception handling workflows.
func New(cfg *config.Config, st *store.Store, handlers *handler.Registry, definitions engine.Definitions, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        st,
		handlers:     handlers,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:     notifications.NewService(cfg),
		owner:        defaultOwner(),
		workers:      cfg.Workflow.Workers,
		pollInterval: cfg.PollInterval(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	m.engine = engine.New(handlers, definitions,
		engine.WithLogger(logger),
		engine.WithSaver(st),
		engine.WithStopSignal(st.StopRequested),
		engine.WithRetryBackoff(cfg.RetryBackoff()),
		engine.WithClock(m.clock),
	)
	m.heartbeat = NewHeartbeatMonitor(st, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout(), m.clock)
	return m
}

// Owner returns the label this manager claims instances under.
func (m *Manager) Owner() string { return m.owner }

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
