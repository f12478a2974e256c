package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediaflow/internal/daemonrun"
	"mediaflow/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process runnable workflow instances in the foreground and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("mediaflow daemon is running (lock %s); it processes submitted workflows", cfg.LockPath())
			}
			defer lock.Unlock()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt, err := daemonrun.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.Store.ResetOwners(runCtx); err != nil {
				return fmt.Errorf("reset workflow owners: %w", err)
			}
			if err := rt.Jobs.Start(runCtx); err != nil {
				return fmt.Errorf("start job cluster: %w", err)
			}

			processed, err := process(runCtx, rt, once)
			summary := rt.Manager.Status(context.WithoutCancel(runCtx))
			if ctx.jsonOutput() {
				if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d workflow step(s)\n", processed)
			if last := summary.LastOutcome; last != nil {
				fmt.Fprintf(out, "Last: %s %s (%s)\n", last.WorkflowID, stateLabel(last.State), last.Operation)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Advance at most one instance")
	return cmd
}

func process(ctx context.Context, rt *daemonrun.Runtime, once bool) (int, error) {
	if !once {
		return rt.Manager.Drain(ctx)
	}
	claimed, err := rt.Manager.ProcessOnce(ctx)
	if claimed {
		return 1, err
	}
	return 0, err
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel    string
		development bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run workflow workers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging (source locations)")
	return cmd
}
