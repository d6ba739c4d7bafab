package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/floroz/gavel-live/internal/adapters/api"
	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/config"
	"github.com/floroz/gavel-live/internal/infra/events"
	"github.com/floroz/gavel-live/internal/notify"
	"github.com/floroz/gavel-live/pkg/auth"
)

const usage = `Usage: auction-admin <command> [flags]

Commands:
  hash-password   print the argon2id hash of a password (read from stdin when --password is empty)
  login           exchange the admin password for a token
  reset           reset every auction (RPC with --token, or the RabbitMQ command queue with --rabbitmq-url)
  list            print the current auctions
  bid             place a bid, e.g. bid --item 1 --amount 1005.50
`

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.String("server-url", "http://localhost:8080", "auction server base URL")
	fs.String("token", "", "admin token")
	fs.String("username", "admin", "admin username")
	fs.String("password", "", "admin password")
	fs.String("rabbitmq-url", "", "send reset through the RabbitMQ command queue instead of RPC")
	fs.String("item", "", "item id")
	fs.String("amount", "", "bid amount in major units")
	fs.String("name", "", "bidder display name")

	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	client := api.NewClient(http.DefaultClient, v.GetString("server-url"))

	switch command {
	case "hash-password":
		password := v.GetString("password")
		if password == "" {
			line, err := bufio.NewReader(stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			password = strings.TrimRight(line, "\r\n")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, hash)
		return nil

	case "login":
		res, err := client.AdminLogin(ctx, v.GetString("username"), v.GetString("password"))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, res.Token)
		return nil

	case "reset":
		if url := v.GetString("rabbitmq-url"); url != "" {
			conn, err := amqp.Dial(url)
			if err != nil {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			defer conn.Close()
			if err := events.PublishCommand(ctx, conn, events.CommandReset, v.GetString("username")); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "reset command queued")
			return nil
		}

		res, err := client.WithToken(v.GetString("token")).ResetAll(ctx)
		if err != nil {
			return err
		}
		return printItems(stdout, res.ServerTime, res.Items)

	case "list":
		res, err := client.ListItems(ctx)
		if err != nil {
			return err
		}
		return printItems(stdout, res.ServerTime, res.Items)

	case "bid":
		amount, err := auction.ParseAmount(v.GetString("amount"))
		if err != nil {
			return err
		}
		req := &api.PlaceBidRequest{ItemID: v.GetString("item"), BidAmount: amount}
		if name := v.GetString("name"); name != "" {
			req.UserName = &name
		}

		res, err := client.PlaceBid(ctx, req)
		if err != nil {
			if reason := api.RejectReason(err); reason != "" {
				return fmt.Errorf("bid rejected (%s): %w", reason, err)
			}
			return err
		}
		fmt.Fprintf(stdout, "accepted: item %s now at %s (seq %d)\n",
			res.Update.ItemID, auction.FormatAmount(res.Update.NewBid), res.Update.Seq)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func printItems(w io.Writer, serverTime int64, items []notify.ItemView) error {
	now := notify.FromEpochMillis(serverTime)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCURRENT BID\tLEADER\tREMAINING")
	for _, item := range items {
		leader := "-"
		if item.HighestBidderName != nil {
			leader = *item.HighestBidderName
		} else if item.HighestBidderID != nil {
			leader = *item.HighestBidderID
		}

		remaining := "ended"
		if left := notify.FromEpochMillis(item.AuctionEndTime).Sub(now); left >= 0 {
			remaining = left.Round(time.Second).String()
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.Title, auction.FormatAmount(item.CurrentBid), leader, remaining)
	}
	return tw.Flush()
}
