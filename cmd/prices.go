package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/klemjul/cryptochat/internal/app"
	"github.com/klemjul/cryptochat/internal/config"
	"github.com/klemjul/cryptochat/internal/format"
	"github.com/klemjul/cryptochat/internal/price"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func PricesCommand(app app.App) *cobra.Command {
	pricesCmd := &cobra.Command{
		Use:   "prices [id...]",
		Short: "Print current USD prices and 24h change of crypto assets.",
		Example: `
cryptochat prices   # Prices of the configured symbols
cryptochat prices bitcoin dogecoin=Doge   # Prices of the given CoinGecko ids
cryptochat prices --watch   # Keep printing updates
	`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrices(cmd, args, app)
		},
	}

	pricesCmd.Flags().BoolP("watch", "w", false, "Keep polling and print every update.")

	return pricesCmd
}

func runPrices(cmd *cobra.Command, args []string, app app.App) error {
	var syms []price.Symbol
	var err error
	if len(args) > 0 {
		syms, err = price.ParseSymbols(args)
	} else {
		syms, err = symbols()
	}
	if err != nil {
		return err
	}
	if len(syms) == 0 {
		return fmt.Errorf("no symbols to fetch")
	}

	fetcher := app.Prices().NewFetcher(viper.GetString(config.ENV_PRICE_API))
	out := cmd.OutOrStdout()

	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		interval := viper.GetDuration(config.ENV_POLL_INTERVAL)
		if interval <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		return watchPrices(cmd.Context(), out, price.NewPoller(fetcher, syms, interval))
	}

	failed := 0
	for _, symbol := range syms {
		quote, err := fetcher.Fetch(cmd.Context(), symbol.ID)
		printUpdate(out, price.Update{Symbol: symbol, Quote: quote, Err: err})
		if err != nil {
			failed++
		}
	}
	if failed == len(syms) {
		return fmt.Errorf("failed to fetch prices")
	}
	return nil
}

func watchPrices(ctx context.Context, out io.Writer, poller *price.Poller) error {
	updates := make(chan price.Update)
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx, updates)
	}()

	for {
		select {
		case u := <-updates:
			printUpdate(out, u)
		case <-done:
			return nil
		}
	}
}

func printUpdate(out io.Writer, u price.Update) {
	if u.Err != nil {
		fmt.Fprintf(out, "%-12s %s (%v)\n", u.Symbol.Name, "unavailable", u.Err)
		return
	}
	fmt.Fprintf(out, "%-12s %14s  %s\n", u.Symbol.Name, format.FormatPrice(u.Quote.USD), format.FormatChange(u.Quote.Change24h))
}
