package main

import (
	"github.com/spf13/cobra"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/source"
)

var (
	newsFlags   scrapeFlags
	newsDetails bool
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Scrape market news listings",
	Long:  "Walks the news listing pages in order, optionally enriching each article from its detail page, and streams the articles to the chosen destination.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd, "news", &newsFlags, func(client *source.Client, sc config.ScrapeConfig) source.Source {
			if cmd.Flags().Changed("details") {
				sc.FetchDetails = newsDetails
			}
			return source.NewNews(client, cfg.News, sc)
		})
	},
}

func init() {
	addScrapeFlags(newsCmd, &newsFlags)
	newsCmd.Flags().BoolVar(&newsDetails, "details", true, "fetch article detail pages for full content")
	rootCmd.AddCommand(newsCmd)
}
