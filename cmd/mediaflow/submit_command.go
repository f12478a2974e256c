package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediaflow/internal/mediapackage"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		packagePath string
		title       string
		tracks      []string
		properties  []string
	)

	cmd := &cobra.Command{
		Use:   "submit <definition-id>",
		Short: "Start a workflow instance for a media package",
		Long: "Instantiate a workflow definition against a media package. The package is\n" +
			"read from --mediapackage, or assembled from --title and --track flavor=uri.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, loadErr := ctx.loadCatalog()
			def, ok := catalog.Get(args[0])
			if !ok {
				if loadErr != nil {
					return fmt.Errorf("workflow definition %q not found: %w", args[0], loadErr)
				}
				return fmt.Errorf("workflow definition %q not found", args[0])
			}
			reg, err := ctx.handlerRegistry()
			if err != nil {
				return err
			}
			if err := reg.ValidateDefinition(def); err != nil {
				return err
			}

			props, err := parseProperties(properties)
			if err != nil {
				return err
			}
			mp, err := buildMediaPackage(packagePath, title, tracks)
			if err != nil {
				return err
			}
			wi, err := workflow.NewInstance(def, mp, props, time.Now())
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				if err := st.Create(cmd.Context(), wi); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, wi)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted workflow %s (%s, media package %s)\n", wi.ID, def.ID, wi.MediaPackage.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&packagePath, "mediapackage", "m", "", "Media package JSON file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Media package title")
	cmd.Flags().StringArrayVar(&tracks, "track", nil, "Track as flavor=uri (repeatable)")
	cmd.Flags().StringArrayVarP(&properties, "prop", "p", nil, "Workflow property key=value (repeatable)")
	return cmd
}

func buildMediaPackage(path, title string, tracks []string) (*mediapackage.MediaPackage, error) {
	mp := &mediapackage.MediaPackage{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read media package: %w", err)
		}
		if err := json.Unmarshal(data, mp); err != nil {
			return nil, fmt.Errorf("decode media package %s: %w", path, err)
		}
	}
	if mp.ID == "" {
		mp.ID = uuid.NewString()
	}
	if title = strings.TrimSpace(title); title != "" {
		mp.Title = title
	}
	for _, raw := range tracks {
		flavorText, uri, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(uri) == "" {
			return nil, fmt.Errorf("invalid track %q (expected flavor=uri)", raw)
		}
		flavor, err := mediapackage.ParseFlavor(strings.TrimSpace(flavorText))
		if err != nil {
			return nil, err
		}
		mp.Add(mediapackage.Element{
			ID:     uuid.NewString(),
			Kind:   mediapackage.KindTrack,
			Flavor: flavor,
			URI:    strings.TrimSpace(uri),
		})
	}
	return mp, nil
}
