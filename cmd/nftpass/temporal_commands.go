package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/nftpass/service/temporal"
)

func confirmationStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the confirmation workflow for a purchase",
		ArgsUsage: "<signature>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "nftpass-purchases",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			signature := c.Args().First()

			tc, err := temporal.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("task-queue"),
				cliLogger(c),
			)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			status, err := tc.DescribePurchaseConfirmation(ctx, signature)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, status)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Workflow: %s\n", status.WorkflowID)
			fmt.Fprintf(w, "Run:      %s\n", status.RunID)
			fmt.Fprintf(w, "Status:   %s\n", status.Status)
			if r := status.Result; r != nil {
				fmt.Fprintf(w, "Outcome:  %s after %d polls\n", r.Status, r.Polls)
				if r.Slot != 0 {
					fmt.Fprintf(w, "Slot:     %d\n", r.Slot)
				}
				if r.Error != nil {
					fmt.Fprintf(w, "Error:    %s\n", *r.Error)
				}
			}
			return nil
		},
	}
}
