package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftmarket/driftmarket/internal/server"
)

var sweepMax int

func init() {
	sweepCmd.Flags().IntVar(&sweepMax, "max", 100, "maximum orders to process")
}

// driftmarket sweep:emails — run one email retry sweep and exit.
var sweepCmd = &cobra.Command{
	Use:   "sweep:emails",
	Short: "Retry confirmation emails for unsent orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := server.Build(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.Sweep.Run(ctx, sweepMax, "cli")
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d orders: %d sent, %d failed\n",
			result.Processed, result.Sent, result.Failed)
		return nil
	},
}
