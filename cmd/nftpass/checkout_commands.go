package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/nftpass/client"
	"github.com/brojonat/nftpass/service/solana"
)

func checkoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "Buy an NFT pass with a keypair wallet",
		Description: `Run the full checkout exchange against the server:

  1. request the partially signed transaction for the wallet
  2. sign the fee payer slot with the keypair
  3. relay the signed transaction back to the server
  4. submit the fully signed transaction and wait for confirmation

A failed run is never retried automatically; run the command again.

Example:
  nftpass checkout --keypair ~/.config/solana/id.json --rpc-url https://api.devnet.solana.com`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Path to a solana-keygen keypair file",
				EnvVars: []string{"NFTPASS_KEYPAIR"},
				Value:   defaultKeypairPath(),
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint used to submit and confirm the transaction",
				EnvVars: []string{"HELIUS_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Interval between confirmation checks",
				Value: 2 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for confirmation",
				Value: 90 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			logger := cliLogger(c)
			jsonOutput := c.Bool("json")

			wallet, err := client.LoadKeypairWallet(c.String("keypair"))
			if err != nil {
				return err
			}

			api, err := newAPIClient(c, 30*time.Second)
			if err != nil {
				return err
			}

			rpcURL := c.String("rpc-url")
			chain := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), nil, logger)
			confirmer := solana.NewConfirmer(chain, c.Duration("poll-interval"), c.Duration("timeout"), logger)

			orchestrator := client.NewOrchestrator(api, wallet, chain, confirmer, logger)
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Buyer: %s\n", wallet.PublicKey())
				orchestrator.OnStateChange(func(from, to client.State) {
					fmt.Fprintf(os.Stderr, "  %s -> %s\n", from, to)
				})
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcome := orchestrator.Run(ctx)
			if jsonOutput {
				if err := outputJSON(c.App.Writer, outcome); err != nil {
					return err
				}
			} else {
				printOutcome(c.App.Writer, outcome)
			}

			if outcome.State != client.Success {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func printOutcome(w io.Writer, outcome client.Outcome) {
	if outcome.Message != "" {
		fmt.Fprintf(w, "%s\n", outcome.Message)
	}
	if outcome.State == client.Success {
		fmt.Fprintf(w, "✓ Purchase confirmed\n")
	} else {
		fmt.Fprintf(w, "✗ %s\n", outcome.Error)
	}
	if outcome.Signature != "" {
		fmt.Fprintf(w, "  Signature: %s\n", outcome.Signature)
	}
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/solana/id.json"
}

func qrCommand() *cli.Command {
	return &cli.Command{
		Name:  "qr",
		Usage: "Print the scan-to-pay link and QR code for the checkout endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Build the link for this checkout URL locally instead of asking the server",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the QR code as a PNG file",
			},
		},
		Action: func(c *cli.Context) error {
			var link, pngData string

			if endpoint := c.String("endpoint"); endpoint != "" {
				link = client.PaymentRequestURL(endpoint)
				if c.String("output") != "" {
					data, err := client.QRCodeBase64(link)
					if err != nil {
						return err
					}
					pngData = data
				}
			} else {
				api, err := newAPIClient(c, 10*time.Second)
				if err != nil {
					return err
				}
				pr, err := api.PaymentRequest(context.Background())
				if err != nil {
					return fmt.Errorf("failed to get payment request: %w", err)
				}
				link, pngData = pr.URL, pr.QRCodeData
			}

			if path := c.String("output"); path != "" {
				if pngData == "" {
					return fmt.Errorf("server did not return QR code data")
				}
				png, err := base64.StdEncoding.DecodeString(pngData)
				if err != nil {
					return fmt.Errorf("invalid QR code data: %w", err)
				}
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, client.PaymentRequest{URL: link, QRCodeData: pngData})
			}

			art, err := client.QRCodeTerminal(link)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, art)
			fmt.Fprintln(c.App.Writer, link)
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a checkout transaction",
		ArgsUsage: "[base64-transaction | -]",
		Description: `Show the fee payer, signer slots and instructions of a transaction.

The transaction is read from the argument, from stdin when the argument is "-",
or requested from the server for --account without signing it.

Examples:
  nftpass inspect --account 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  pbpaste | nftpass inspect - --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Request the unsigned checkout transaction for this buyer",
			},
		},
		Action: func(c *cli.Context) error {
			encoded, err := readTransactionArg(c)
			if err != nil {
				return err
			}

			tx, err := client.DecodeTransaction(encoded)
			if err != nil {
				return err
			}
			summary, err := solana.Summarize(tx)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, summary)
			}
			printSummary(c.App.Writer, summary)
			return nil
		},
	}
}

func readTransactionArg(c *cli.Context) (string, error) {
	if account := c.String("account"); account != "" {
		api, err := newAPIClient(c, 30*time.Second)
		if err != nil {
			return "", err
		}
		resp, err := api.RequestTransaction(context.Background(), account)
		if err != nil {
			return "", fmt.Errorf("failed to request transaction: %w", err)
		}
		return resp.Transaction, nil
	}

	if c.NArg() != 1 {
		return "", fmt.Errorf("requires a base64 transaction argument, \"-\" for stdin, or --account")
	}
	arg := c.Args().First()
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printSummary(w io.Writer, s *solana.TransactionSummary) {
	fmt.Fprintf(w, "Fee payer: %s\n", s.FeePayer)
	fmt.Fprintf(w, "Blockhash: %s\n\n", s.Blockhash)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSIGNER\tSIGNED")
	for _, slot := range s.Signers {
		fmt.Fprintf(tw, "%d\t%s\t%v\n", slot.Index, slot.Signer, slot.Signed)
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPROGRAM\tKIND\tDETAIL")
	for _, ix := range s.Instructions {
		detail := ""
		if ix.Amount != nil {
			detail = fmt.Sprintf("amount=%d", *ix.Amount)
			if ix.Decimals != nil {
				detail += fmt.Sprintf(" decimals=%d", *ix.Decimals)
			}
		}
		if ix.Mint != "" {
			detail = strings.TrimSpace(detail + " mint=" + ix.Mint)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ix.Index, ix.Program, ix.Kind, detail)
	}
	tw.Flush()
}
