package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/source"
)

var stocksFlags scrapeFlags

var stocksCmd = &cobra.Command{
	Use:   "stocks [symbol...]",
	Short: "Scrape stock fundamental ratios",
	Long:  "Fetches the fundamentals page for each symbol; each symbol is a page, so a full run covers every symbol given on the command line or in config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := args
		if len(symbols) == 0 {
			symbols = cfg.Stocks.Symbols
		}
		if len(symbols) == 0 {
			return eris.New("no symbols: pass them as arguments or set stocks.symbols in config")
		}

		if stocksFlags.pages == 0 {
			stocksFlags.pages = len(symbols)
		}

		return runScrape(cmd, "stocks", &stocksFlags, func(client *source.Client, sc config.ScrapeConfig) source.Source {
			return source.NewStocks(client, cfg.Stocks, symbols)
		})
	},
}

func init() {
	addScrapeFlags(stocksCmd, &stocksFlags)
	rootCmd.AddCommand(stocksCmd)
}
