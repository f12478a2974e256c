package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		states       []string
		definitionID string
		page         int
		count        int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workflow instances, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := store.Query{DefinitionID: definitionID, StartPage: page, Count: count}
			for _, raw := range states {
				for _, part := range strings.Split(raw, ",") {
					state, ok := workflow.ParseState(part)
					if !ok {
						return fmt.Errorf("unknown workflow state %q", part)
					}
					query.States = append(query.States, state)
				}
			}

			return ctx.withStore(func(st *store.Store) error {
				set, err := st.Page(cmd.Context(), query)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, set)
				}
				out := cmd.OutOrStdout()
				if len(set.Items) == 0 {
					fmt.Fprintln(out, "No workflow instances found")
					return nil
				}
				rows := make([][]string, 0, len(set.Items))
				for _, wi := range set.Items {
					created := wi.DateCreated
					rows = append(rows, []string{
						wi.ID,
						wi.Title,
						wi.DefinitionID,
						stateLabel(wi.State),
						currentOperationLabel(wi),
						formatTimestamp(&created),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Definition", "State", "Operation", "Created"},
					rows,
					nil,
				))
				fmt.Fprintf(out, "Page %d of %d (%d total)\n", set.StartPage+1, max(set.Pages(), 1), set.TotalCount)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (repeatable or comma separated)")
	cmd.Flags().StringVarP(&definitionID, "definition", "d", "", "Filter by workflow definition id")
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page number")
	cmd.Flags().IntVar(&count, "count", 20, "Instances per page")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one workflow instance with its operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				rec, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec.Instance)
				}
				renderInstance(cmd, rec)
				return nil
			})
		},
	}
}

func renderInstance(cmd *cobra.Command, rec *store.Record) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	wi := rec.Instance

	for _, line := range renderSectionHeader("Workflow "+wi.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderField("Title", wi.Title))
	fmt.Fprintln(out, renderField("Definition", wi.DefinitionID))
	fmt.Fprintln(out, renderStatusLine("State", workflowStateKind(wi.State), stateLabel(wi.State), colorize))
	if wi.MediaPackage != nil {
		fmt.Fprintln(out, renderField("Media package", wi.MediaPackage.ID))
	}
	created := wi.DateCreated
	fmt.Fprintln(out, renderField("Created", formatTimestamp(&created)))
	fmt.Fprintln(out, renderField("Completed", formatTimestamp(wi.DateCompleted)))
	fmt.Fprintln(out, renderField("Owner", rec.Owner))
	if rec.ResumeRequested {
		fmt.Fprintln(out, renderField("Resume requested", "yes"))
	}
	if rec.StopRequested {
		fmt.Fprintln(out, renderField("Stop requested", "yes"))
	}
	if op := wi.Active(); op != nil && op.State() == workflow.OperationPaused {
		fmt.Fprintln(out, renderField("Hold", op.HoldActionTitle()))
		fmt.Fprintln(out, renderField("Hold URL", op.HoldStateUserInterfaceURL()))
		fmt.Fprintln(out, renderField("Abortable", flagLabel(op.Abortable())))
		fmt.Fprintln(out, renderField("Continuable", flagLabel(op.Continuable())))
	}
	fmt.Fprintln(out)

	if len(wi.History) > 0 {
		for _, line := range renderSectionHeader("Replaced operations", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderOperations(wi.History, -1))
	}
	for _, line := range renderSectionHeader("Operations", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderOperations(wi.Operations, wi.Position))

	if len(wi.Errors) > 0 {
		for _, line := range renderSectionHeader("Errors", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, msg := range wi.Errors {
			fmt.Fprintln(out, statusIndent+msg)
		}
	}
}

func renderOperations(ops []*workflow.Operation, position int) string {
	rows := make([][]string, 0, len(ops))
	for i, op := range ops {
		marker := ""
		if i == position {
			marker = ">"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(op.Position()),
			op.TemplateID(),
			stateLabel(op.State()),
			fmt.Sprintf("%d/%d", op.FailedAttempts(), op.MaxAttempts()),
			op.JobID(),
			formatDuration(op.TimeInQueue()),
			formatTimestamp(op.DateStarted()),
			formatTimestamp(op.DateCompleted()),
		})
	}
	return renderTable(
		[]string{"", "#", "Operation", "State", "Failures", "Job", "Queue", "Started", "Completed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func currentOperationLabel(wi *workflow.Instance) string {
	if wi.State.IsTerminal() {
		return "-"
	}
	if op := wi.Current(); op != nil {
		return op.Key().String()
	}
	return "-"
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var properties []string
	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused workflow instance",
		Long:  "Record a resume request with hold properties. A running daemon, or the next\n`mediaflow run`, continues the instance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(properties)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.RequestResume(cmd.Context(), args[0], props); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resume requested for workflow %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&properties, "prop", "p", nil, "Hold property key=value (repeatable)")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a workflow instance at its next step boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.RequestStop(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for workflow %s\n", args[0])
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete finished workflow instances",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				for _, id := range args {
					if err := st.Remove(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed workflow %s\n", id)
				}
				return nil
			})
		},
	}
}
