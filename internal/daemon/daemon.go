package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediaflow/internal/config"
	"mediaflow/internal/job"
	"mediaflow/internal/logging"
	"mediaflow/internal/manager"
	"mediaflow/internal/preflight"
	"mediaflow/internal/store"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *manager.Manager
	jobs    *job.Cluster

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	cancel    context.CancelFunc
	preflight []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Manager      manager.StatusSummary
	Jobs         map[job.Status]int
	Preflight    []preflight.Result
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, mgr *manager.Manager, jobs *job.Cluster, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || mgr == nil || jobs == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and job cluster")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		manager:  mgr,
		jobs:     jobs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, and launches the job
// cluster and the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	if err := d.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	d.preflight = results
	for _, r := range results {
		if !r.Passed && r.Optional {
			logging.WarnWithContext(d.logger, "optional preflight check failed", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "notifications may not be delivered"),
			)
		}
	}
	if err := preflight.Failures(results); err != nil {
		return err
	}

	reset, err := d.store.ResetOwners(ctx)
	if err != nil {
		return fmt.Errorf("reset workflow owners: %w", err)
	}
	if reset > 0 {
		d.logger.Info("released claims from a previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.jobs.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start job cluster: %w", err)
	}
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start workflow manager: %w", err)
	}
	d.cancel = cancel
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped")
}

// Close stops the daemon and releases the job cluster and store.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.jobs.Close(), d.store.Close())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Manager:      d.manager.Status(ctx),
		Jobs:         d.jobs.Counts(),
		Preflight:    d.preflight,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
