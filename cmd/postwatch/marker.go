package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/state"
)

var resetMarker bool

var markerCmd = &cobra.Command{
	Use:   "marker <handle>",
	Short: "Show or clear the last delivered post for a handle.",
	Long: `marker prints the canonical URL of the last post delivered for <handle>.
With --reset the marker is removed and the next run delivers the current
latest post again.`,
	Args:          usageArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		handle, err := models.NormalizeHandle(args[0])
		if err != nil {
			return err
		}

		store, err := state.Open(ctx, cfg.State)
		if err != nil {
			return models.NewRunError(models.ErrCodeState, "failed to open state store", err)
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if resetMarker {
			if err := store.Delete(ctx, handle); err != nil {
				return models.NewRunError(models.ErrCodeState, "failed to reset marker", err)
			}
			fmt.Fprintf(out, "marker for %s cleared\n", handle)
			return nil
		}

		marker, found, err := store.Get(ctx, handle)
		if err != nil {
			return models.NewRunError(models.ErrCodeState, "failed to read marker", err)
		}
		if !found {
			fmt.Fprintf(out, "no marker for %s\n", handle)
			return nil
		}
		fmt.Fprintln(out, marker)
		return nil
	},
}

func init() {
	markerCmd.Flags().BoolVar(&resetMarker, "reset", false, "remove the stored marker")
}
