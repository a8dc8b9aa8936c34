package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nftpass",
		Usage: "NFT pass checkout CLI",
		Description: `A command-line tool for buying NFT passes and operating the checkout service.

Use this CLI to run a checkout with a keypair wallet, print scan-to-pay links,
inspect checkout transactions, and debug the purchase journal, event stream and
confirmation workflows.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Checkout exchange commands (HTTP API)
			checkoutCommand(),
			qrCommand(),
			inspectCommand(),
			// Purchase journal commands
			{
				Name:  "db",
				Usage: "Purchase journal inspection commands",
				Subcommands: []*cli.Command{
					listPurchasesCommand(),
					getPurchaseCommand(),
					purchaseStatsCommand(),
				},
			},
			// Temporal inspection commands
			{
				Name:  "temporal",
				Usage: "Confirmation workflow inspection commands",
				Subcommands: []*cli.Command{
					confirmationStatusCommand(),
				},
			},
			// NATS purchase event commands
			{
				Name:  "nats",
				Usage: "NATS purchase event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					infoCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Checkout server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr",
			},
		},
	}
}
