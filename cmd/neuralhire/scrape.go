package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/ingestion"
	"github.com/nursmen/neuralhire/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape vacancy search pages into a CSV file for import",
	Args:  cobra.NoArgs,
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringP("out", "o", "jobs.csv", "output CSV file")
	scrapeCmd.Flags().IntP("pages", "p", 0, "number of search pages (default SCRAPE_PAGES)")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	outPath, _ := cmd.Flags().GetString("out")
	pages, _ := cmd.Flags().GetInt("pages")
	if pages <= 0 {
		pages = cfg.ScrapePages
	}

	fetcher, err := scraper.NewChromeFetcher(ctx, scraper.ChromeOptions{
		UserAgent: cfg.UserAgent,
		WaitFor:   "." + scraper.DefaultSelectors.Card,
	})
	if err != nil {
		return err
	}
	defer fetcher.Close()

	s, err := scraper.New(fetcher, scraper.Config{
		BaseURL: cfg.ScrapeBaseURL,
		Pages:   pages,
		Delay:   cfg.ScrapeDelay,
	}, log)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	stats, err := s.Run(ctx, ingestion.NewWriter(f))
	if err != nil {
		return err
	}
	log.Info("scrape finished",
		zap.String("out", outPath),
		zap.Int("pages", stats.Pages),
		zap.Int("failed_pages", stats.FailedPages),
		zap.Int("rows", stats.Rows),
	)
	return nil
}
