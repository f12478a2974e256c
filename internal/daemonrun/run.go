package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"mediaflow/internal/condition"
	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/definition"
	"mediaflow/internal/handler"
	"mediaflow/internal/job"
	"mediaflow/internal/logging"
	"mediaflow/internal/manager"
	"mediaflow/internal/operations"
	"mediaflow/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Runtime bundles the components a mediaflow process runs workflows with.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Catalog  *definition.Catalog
	Jobs     *job.Cluster
	Handlers *handler.Registry
	Manager  *manager.Manager
}

// Build opens the store, loads the definitions directory and registers the
// built-in handlers. Definitions that reference unknown handlers or keys are
// reported but do not prevent the runtime from starting.
func Build(cfg *config.Config, logger *slog.Logger, opts ...manager.Option) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	evaluator := condition.NewEvaluator()
	catalog := definition.NewCatalog(evaluator)
	loaded, err := catalog.LoadDir(cfg.Paths.DefinitionsDir, cfg.Workflow.DefaultMaxAttempts, logger)
	if err != nil {
		return nil, fmt.Errorf("load workflow definitions: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open workflow store: %w", err)
	}

	cluster := job.NewCluster(job.ClusterOptions{
		Nodes:     cfg.Jobs.Nodes,
		Buffer:    cfg.Jobs.Buffer,
		Logger:    logger,
		Retention: 2 * cfg.JobWaitTimeout(),
	})
	if err := operations.RegisterProcessors(cluster, cfg.Paths.WorkspaceDir); err != nil {
		_ = st.Close()
		return nil, err
	}
	reg := handler.NewRegistry()
	if err := operations.Register(reg, cluster, cfg); err != nil {
		_ = st.Close()
		return nil, err
	}

	for _, def := range catalog.List() {
		if err := reg.ValidateDefinition(def); err != nil {
			logging.WarnWithContext(logger, "workflow definition does not match registered handlers", "definition_invalid",
				logging.String(logging.FieldDefinitionID, def.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run mediaflow definitions validate"),
			)
		}
	}
	logger.Info("workflow definitions loaded",
		logging.Int("count", loaded),
		logging.String("dir", cfg.Paths.DefinitionsDir),
	)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Catalog:  catalog,
		Jobs:     cluster,
		Handlers: reg,
		Manager:  manager.New(cfg, st, reg, catalog, logger, opts...),
	}, nil
}

// Close releases the job cluster and the store.
func (r *Runtime) Close() error {
	return errors.Join(r.Jobs.Close(), r.Store.Close())
}

// Run starts the mediaflow daemon in the foreground until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "mediaflow-daemon.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "mediaflow.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, rt.Store, rt.Manager, rt.Jobs, logger)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, directory permissions and the lock file"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mediaflow daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
