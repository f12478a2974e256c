package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/definition"
)

func newDefinitionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "definitions",
		Aliases: []string{"defs"},
		Short:   "Inspect workflow definitions",
	}
	cmd.AddCommand(newDefinitionsListCommand(ctx))
	cmd.AddCommand(newDefinitionsShowCommand(ctx))
	cmd.AddCommand(newDefinitionsValidateCommand(ctx))
	return cmd
}

func newDefinitionsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.loadCatalog()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			defs := catalog.List()
			if ctx.jsonOutput() {
				return writeJSON(cmd, defs)
			}
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintln(out, "No workflow definitions found")
				return nil
			}
			rows := make([][]string, 0, len(defs))
			for _, def := range defs {
				rows = append(rows, []string{
					def.ID,
					def.Label(),
					strconv.Itoa(len(def.Operations)),
					yesNo(def.Published),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Operations", "Published"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newDefinitionsShowCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, loadErr := ctx.loadCatalog()
			def, ok := catalog.Get(args[0])
			if !ok {
				if loadErr != nil {
					return fmt.Errorf("workflow definition %q not found: %w", args[0], loadErr)
				}
				return fmt.Errorf("workflow definition %q not found", args[0])
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, def)
			}
			out := cmd.OutOrStdout()
			if format != "" {
				data, err := definition.Encode(def, definition.Format(strings.ToLower(format)))
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			fmt.Fprintln(out, renderField("ID", def.ID))
			fmt.Fprintln(out, renderField("Title", def.Title))
			fmt.Fprintln(out, renderField("Description", def.Description))
			fmt.Fprintln(out, renderField("Published", yesNo(def.Published)))
			rows := make([][]string, 0, len(def.Operations))
			for pos, op := range def.Operations {
				rows = append(rows, []string{
					strconv.Itoa(pos),
					op.ID,
					conditionSummary(op),
					strconv.Itoa(op.MaxAttempts),
					yesNo(op.FailWorkflowOnException),
					op.ExceptionHandlingWorkflow,
					configSummary(op.Configuration),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Operation", "Condition", "Attempts", "Fail WF", "Exception WF", "Configuration"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Print the definition as toml or json instead of a table")
	return cmd
}

func newDefinitionsValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check definitions against the registered handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			catalog, loadErr := ctx.loadCatalog()
			reg, err := ctx.handlerRegistry()
			if err != nil {
				return err
			}

			var errs []error
			if loadErr != nil {
				errs = append(errs, loadErr)
				fmt.Fprintln(out, renderStatusLine("Definitions directory", statusError, loadErr.Error(), colorize))
			}
			for _, def := range catalog.List() {
				if err := reg.ValidateDefinition(def); err != nil {
					errs = append(errs, err)
					fmt.Fprintln(out, renderStatusLine(def.ID, statusError, err.Error(), colorize))
					continue
				}
				fmt.Fprintln(out, renderStatusLine(def.ID, statusOK, fmt.Sprintf("%d operations", len(def.Operations)), colorize))
			}
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			fmt.Fprintln(out, "All workflow definitions valid")
			return nil
		},
	}
}

func conditionSummary(op definition.Operation) string {
	var parts []string
	if op.ExecuteCondition != "" {
		parts = append(parts, "if "+op.ExecuteCondition)
	}
	if op.SkipCondition != "" {
		parts = append(parts, "unless "+op.SkipCondition)
	}
	return strings.Join(parts, "; ")
}

func configSummary(cfg definition.Configuration) string {
	entries := cfg.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Key+"="+e.Value)
	}
	return strings.Join(parts, "\n")
}
