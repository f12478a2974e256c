package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaflow/internal/report"
	"mediaflow/internal/store"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var definitionID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show workflow counts per definition and operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				instances, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				stats := report.Compute(instances)
				if definitionID != "" {
					def, ok := stats.Definition(definitionID)
					if !ok {
						def = report.DefinitionReport{ID: definitionID}
					}
					stats = report.Statistics{Counts: def.Counts, Definitions: []report.DefinitionReport{def}}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}

				rows := [][]string{countsRow("All workflows", "", stats.Counts)}
				for _, def := range stats.Definitions {
					rows = append(rows, countsRow(def.ID, "", def.Counts))
					for _, op := range def.Operations {
						rows = append(rows, countsRow("", fmt.Sprintf("%s#%d", op.ID, op.Position), op.Counts))
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Definition", "Operation", "Total", "Queued", "Running", "Paused", "Finished", "Stopped", "Failing", "Failed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&definitionID, "definition", "d", "", "Only report one workflow definition")
	return cmd
}

func countsRow(definition, operation string, c report.Counts) []string {
	return []string{
		definition,
		operation,
		strconv.Itoa(c.Total),
		strconv.Itoa(c.Instantiated),
		strconv.Itoa(c.Running),
		strconv.Itoa(c.Paused),
		strconv.Itoa(c.Finished),
		strconv.Itoa(c.Stopped),
		strconv.Itoa(c.Failing),
		strconv.Itoa(c.Failed),
	}
}
