// Command trader is the command-line client for the marketplace. It
// resolves the market and bank through the name service and exposes one
// subcommand per remote operation, plus a long-running listen mode that
// prints callback notifications as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oskarlind/tradingpost/internal/config"
	"github.com/oskarlind/tradingpost/internal/hub"
	"github.com/oskarlind/tradingpost/internal/model"
	"github.com/oskarlind/tradingpost/internal/trader"
)

const usage = `usage: trader [-config FILE] [-name NAME] COMMAND [ARGS]

commands:
  register                   register on the market
  unregister                 leave the market, dropping offers and wishes
  sell NAME PRICE            list an item for sale
  buy NAME PRICE             buy a listed item
  wish NAME PRICE            wish for an item at or below PRICE
  list                       print the current market listing
  listen                     stay attached and print callback notifications
  new-account                open a bank account under the trader's name
  delete-account             close the trader's bank account
  deposit AMOUNT             deposit into the trader's account
  withdraw AMOUNT            withdraw from the trader's account
  balance                    print the account balance`

func main() {
	configPath := flag.String("config", "", "path to config file")
	name := flag.String("name", "", "trader name (overrides config)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadTrader(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if *name != "" {
		cfg.Name = *name
	}
	if cfg.Name == "" {
		fatal("trader name required (set -name or name: in config)")
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := args[0], args[1:]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := trader.Dial(ctx, cfg.Registry.URL, cfg.Name, cfg.Market, cfg.Bank, logger)
	if err != nil {
		fatal("%v", err)
	}

	if err := run(ctx, client, cmd, args); err != nil {
		if ctx.Err() != nil {
			os.Exit(0)
		}
		fatal("%s: %v", cmd, err)
	}
}

func run(ctx context.Context, client *trader.Client, cmd string, args []string) error {
	switch cmd {
	case "register":
		if err := client.Register(ctx); err != nil {
			return err
		}
		fmt.Printf("registered as %s\n", client.Name())
		return nil

	case "unregister":
		if err := client.Unregister(ctx); err != nil {
			return err
		}
		fmt.Printf("unregistered %s\n", client.Name())
		return nil

	case "sell":
		item, err := itemArgs(args)
		if err != nil {
			return err
		}
		if err := client.Sell(ctx, item); err != nil {
			return err
		}
		fmt.Printf("listed %s\n", item)
		return nil

	case "buy":
		item, err := itemArgs(args)
		if err != nil {
			return err
		}
		if err := client.Buy(ctx, item); err != nil {
			return err
		}
		fmt.Printf("bought %s\n", item)
		return nil

	case "wish":
		item, err := itemArgs(args)
		if err != nil {
			return err
		}
		if err := client.Wish(ctx, item); err != nil {
			return err
		}
		fmt.Printf("wished for %s\n", item)
		return nil

	case "list":
		listing, offers, err := client.ListItems(ctx)
		if err != nil {
			return err
		}
		if len(offers) == 0 {
			fmt.Println(listing)
			return nil
		}
		for _, offer := range offers {
			fmt.Printf("%s  (seller: %s)\n", offer.Item, offer.Seller.ClientName)
		}
		return nil

	case "listen":
		return listen(ctx, client)

	case "new-account":
		if err := client.Bank().NewAccount(ctx, client.Name()); err != nil {
			return err
		}
		fmt.Printf("opened account %s\n", client.Name())
		return nil

	case "delete-account":
		if err := client.Bank().DeleteAccount(ctx, client.Name()); err != nil {
			return err
		}
		fmt.Printf("closed account %s\n", client.Name())
		return nil

	case "deposit":
		return transfer(ctx, client, "deposit", args)

	case "withdraw":
		return transfer(ctx, client, "withdraw", args)

	case "balance":
		acct, ok, err := client.Bank().Account(ctx, client.Name())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no account for %s", client.Name())
		}
		cents, err := acct.Balance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("balance: $%s\n", model.FormatAmount(cents))
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func transfer(ctx context.Context, client *trader.Client, op string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: trader %s AMOUNT", op)
	}
	cents, err := model.ParseAmount(args[0])
	if err != nil {
		return err
	}

	acct, ok, err := client.Bank().Account(ctx, client.Name())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no account for %s", client.Name())
	}

	if op == "deposit" {
		err = acct.Deposit(ctx, cents)
	} else {
		err = acct.Withdraw(ctx, cents)
	}
	if err != nil {
		return err
	}

	balance, err := acct.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("balance: $%s\n", model.FormatAmount(balance))
	return nil
}

// listen attaches the callback WebSocket and prints each notification.
// Runs until interrupted.
func listen(ctx context.Context, client *trader.Client) error {
	callbackURL, err := client.CallbackURL()
	if err != nil {
		return err
	}

	fmt.Printf("listening for callbacks as %s (ctrl-c to stop)\n", client.Name())
	listener := trader.NewListener(trader.DefaultListenerConfig(), callbackURL, func(frame hub.Frame) {
		fmt.Printf("[callback] %s\n", frame.Message)
	}, slog.Default())

	err = listener.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func itemArgs(args []string) (model.Item, error) {
	if len(args) != 2 {
		return model.Item{}, fmt.Errorf("expected NAME and PRICE arguments")
	}
	cents, err := model.ParseAmount(args[1])
	if err != nil {
		return model.Item{}, err
	}
	return model.Item{Name: args[0], Price: cents}, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "trader: "+format+"\n", args...)
	os.Exit(1)
}
