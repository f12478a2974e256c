package daemon_test

import (
	"context"
	"testing"

	"mediaflow/internal/daemon"
	"mediaflow/internal/definition"
	"mediaflow/internal/handler"
	"mediaflow/internal/job"
	"mediaflow/internal/manager"
	"mediaflow/internal/operations"
	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	cluster := job.NewCluster(job.ClusterOptions{Nodes: 1})
	if err := operations.RegisterProcessors(cluster, cfg.Paths.WorkspaceDir); err != nil {
		t.Fatalf("RegisterProcessors: %v", err)
	}
	reg := handler.NewRegistry()
	if err := operations.Register(reg, cluster, cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mgr := manager.New(cfg, st, reg, definition.NewCatalog(nil), nil)
	d, err := daemon.New(cfg, st, mgr, cluster, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Manager.Running {
		t.Fatal("expected workflow manager running")
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Manager.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondDaemonIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	build := func() *daemon.Daemon {
		st, err := store.Open(cfg)
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		cluster := job.NewCluster(job.ClusterOptions{})
		reg := handler.NewRegistry()
		if err := operations.Register(reg, cluster, cfg); err != nil {
			t.Fatalf("Register: %v", err)
		}
		d, err := daemon.New(cfg, st, manager.New(cfg, st, reg, definition.NewCatalog(nil), nil), cluster, nil)
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(func() { d.Close() })
		return d
	}

	first := build()
	second := build()
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
