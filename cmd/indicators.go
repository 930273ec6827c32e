package main

import (
	"github.com/spf13/cobra"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/source"
)

var (
	indicatorsFlags   scrapeFlags
	indicatorsCountry string
	indicatorsTabs    []string
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Scrape economic indicator tables",
	Long:  "Fetches the indicator tabs for a country one by one; each tab is a page, so a full run covers every configured tab unless --pages caps it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ic := cfg.Indicators
		if indicatorsCountry != "" {
			ic.Country = indicatorsCountry
		}
		if len(indicatorsTabs) > 0 {
			ic.Tabs = indicatorsTabs
		}

		// One page per tab unless the flag narrows the run.
		if indicatorsFlags.pages == 0 {
			indicatorsFlags.pages = len(ic.Tabs)
		}

		return runScrape(cmd, "indicators", &indicatorsFlags, func(client *source.Client, sc config.ScrapeConfig) source.Source {
			return source.NewIndicators(client, ic)
		})
	},
}

func init() {
	addScrapeFlags(indicatorsCmd, &indicatorsFlags)
	indicatorsCmd.Flags().StringVar(&indicatorsCountry, "country", "", "country to scrape (default from config)")
	indicatorsCmd.Flags().StringSliceVar(&indicatorsTabs, "tabs", nil, "indicator tabs to scrape (default from config)")
	rootCmd.AddCommand(indicatorsCmd)
}
