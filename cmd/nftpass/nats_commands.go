package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/brojonat/nftpass/service/nats"
)

// subscribeCommand streams purchase events, optionally for a single buyer.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to purchase events",
		ArgsUsage: "[buyer_address]",
		Description: `Subscribe to purchase events published to NATS JetStream.

Events are published to the subject purchases.{buyer} whenever a purchase is
relayed and again when its confirmation outcome is known. Without a buyer
address every purchase is streamed.

Example:
  nftpass nats subscribe 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "nftpass-cli",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "Only show events for which every jq expression is truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one buyer address may be given")
			}

			subject := natspkg.StreamSubjects
			if c.NArg() == 1 {
				subject = natspkg.SubjectForBuyer(c.Args().First())
			}

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			nc, err := natspkg.Connect(c.String("nats-url"), "nftpass-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			jsonOutput := c.Bool("json")
			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(os.Stderr, "\nWaiting for purchases... (Ctrl-C to exit)\n\n")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to consume: %w", err)
			}
			defer consumeCtx.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.PurchaseEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
						msg.Ack()
						continue
					}
					msg.Ack()

					ok, err := matchAll(filters, &event)
					if err != nil {
						fmt.Fprintf(os.Stderr, "jq filter error: %v\n", err)
						continue
					}
					if !ok {
						continue
					}

					count++
					if jsonOutput {
						data, _ := json.Marshal(event)
						fmt.Fprintln(c.App.Writer, string(data))
					} else {
						printEvent(c.App.Writer, count, &event)
					}

				case <-sigChan:
					if !jsonOutput {
						fmt.Fprintf(os.Stderr, "\n✅ Received %d events\n", count)
					}
					return nil
				}
			}
		},
	}
}

func printEvent(w io.Writer, n int, event *natspkg.PurchaseEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Purchase event #%d: %s\n", n, event.Status)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:  %s\n", event.Signature)
	fmt.Fprintf(w, "Buyer:      %s\n", event.Buyer)
	fmt.Fprintf(w, "Mint:       %s\n", event.Mint)
	fmt.Fprintf(w, "Amount:     %s\n", formatAmount(event.Amount, event.Decimals))
	if event.Error != nil {
		fmt.Fprintf(w, "Error:      %s\n", *event.Error)
	}
	fmt.Fprintf(w, "Published:  %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

// inspectStreamCommand shows information about the purchases stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the PURCHASES JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "nftpass-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
