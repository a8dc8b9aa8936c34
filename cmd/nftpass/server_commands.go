package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/nftpass/client"
)

// newAPIClient builds an HTTP client for --server-url with a quiet logger.
func newAPIClient(c *cli.Context, timeout time.Duration) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, &http.Client{Timeout: timeout}, cliLogger(c)), nil
}

// cliLogger writes errors (or everything with --verbose) to stderr.
func cliLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelError
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			api, err := newAPIClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			if err := api.Health(context.Background()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Server is healthy\n")
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", c.String("server-url"))
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the checkout label and icon served to wallets",
		Action: func(c *cli.Context) error {
			api, err := newAPIClient(c, 10*time.Second)
			if err != nil {
				return err
			}

			info, err := api.CheckoutInfo(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get checkout info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}
			fmt.Fprintf(c.App.Writer, "Label: %s\n", info.Label)
			fmt.Fprintf(c.App.Writer, "Icon:  %s\n", info.Icon)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "nftpass CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
