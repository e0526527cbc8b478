package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/app"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the inference models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Load the models and report which capabilities are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger, app.Options{SkipStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			stop := ui.Spinner(fmt.Sprintf("Loading models (%s)...", cfg.Models.Provider))
			status, loadErr := a.Service.LoadModels(ctx)
			stop()
			if jsonMode {
				if err := ui.JSON(status); err != nil {
					return err
				}
				return loadErr
			}

			ui.Section(fmt.Sprintf("Models (%s)", status.Provider))
			rows := make([][]string, 0, len(domain.AllCapabilities))
			for _, name := range domain.AllCapabilities {
				state := "unavailable"
				if slices.Contains(status.Loaded, name) {
					state = "ready"
				}
				detail := status.Failed[name]
				if limit, ok := status.Limits[name]; ok && detail == "" {
					detail = fmt.Sprintf("context limit %d", limit)
				}
				rows = append(rows, []string{string(name), state, detail})
			}
			ui.Table([]string{"Capability", "State", "Detail"}, rows)

			if status.Ready {
				ui.Success("%d of %d capabilities ready", len(status.Loaded), len(domain.AllCapabilities))
			} else {
				ui.Warning("No capabilities are ready")
			}
			return loadErr
		},
	})
	return cmd
}
