package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/nftpass/service/db"
)

func listPurchasesCommand() *cli.Command {
	return &cli.Command{
		Name:    "purchases",
		Usage:   "List journaled purchases, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "buyer",
				Aliases: []string{"b"},
				Usage:   "Filter by buyer address",
			},
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Filter by status (relayed, confirmed, failed, expired)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of purchases",
				Value:   50,
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "Only show purchases for which every jq expression is truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			status := c.String("status")
			if status != "" && !db.ValidStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			purchases, err := store.ListPurchases(context.Background(), db.ListPurchasesParams{
				Buyer:  c.String("buyer"),
				Status: status,
				Limit:  int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list purchases: %w", err)
			}

			purchases, err = filterPurchases(purchases, filters)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, purchases)
			}

			printPurchases(c.App.Writer, purchases)
			fmt.Fprintf(os.Stderr, "\nTotal: %d purchases\n", len(purchases))
			return nil
		},
	}
}

func getPurchaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "purchase",
		Usage:     "Get purchase details",
		Aliases:   []string{"get"},
		ArgsUsage: "<signature>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			p, err := store.GetPurchase(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get purchase: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, p)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Signature: %s\n", p.Signature)
			fmt.Fprintf(w, "Status:    %s\n", p.Status)
			if p.Error != nil {
				fmt.Fprintf(w, "Error:     %s\n", *p.Error)
			}
			fmt.Fprintf(w, "Buyer:     %s\n", p.Buyer)
			fmt.Fprintf(w, "Mint:      %s\n", p.Mint)
			fmt.Fprintf(w, "Seller:    %s\n", p.Seller)
			fmt.Fprintf(w, "Amount:    %s\n", formatAmount(p.Amount, p.Decimals))
			fmt.Fprintf(w, "Created:   %s\n", p.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Updated:   %s\n", p.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func purchaseStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Count purchases by status",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			counts, err := store.CountPurchasesByStatus(context.Background())
			if err != nil {
				return fmt.Errorf("failed to count purchases: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, counts)
			}

			statuses := make([]string, 0, len(counts))
			for status := range counts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tCOUNT")
			for _, status := range statuses {
				fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
			}
			return w.Flush()
		},
	}
}

func filterPurchases(purchases []*db.Purchase, filters []*gojq.Code) ([]*db.Purchase, error) {
	if len(filters) == 0 {
		return purchases, nil
	}
	out := make([]*db.Purchase, 0, len(purchases))
	for _, p := range purchases {
		ok, err := matchAll(filters, p)
		if err != nil {
			return nil, fmt.Errorf("jq filter failed on %s: %w", p.Signature, err)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func printPurchases(out io.Writer, purchases []*db.Purchase) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNATURE\tBUYER\tAMOUNT\tSTATUS\tCREATED")
	for _, p := range purchases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Signature,
			p.Buyer,
			formatAmount(p.Amount, p.Decimals),
			p.Status,
			p.CreatedAt.Format(time.RFC3339),
		)
	}
	w.Flush()
}

// formatAmount renders base units in whole stablecoin units.
func formatAmount(amount int64, decimals int16) string {
	return decimal.New(amount, -int32(decimals)).String() + " USDC"
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := db.Connect(context.Background(), dbURL)
	if err != nil {
		return nil, nil, err
	}

	return db.NewStore(pool), pool.Close, nil
}

// Helper function to output JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
