// Package scraper collects job postings from a vacancy search site into the
// CSV format read by the importer.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/ingestion"
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Config configures a Scraper.
type Config struct {
	BaseURL   string        // search page; the page number is added as ?page=N
	Pages     int           // pages 1..Pages are fetched
	Delay     time.Duration // pause between pages
	Selectors Selectors
}

// Stats summarises a scrape.
type Stats struct {
	Pages       int
	FailedPages int
	Rows        int
}

// Scraper walks search result pages.
type Scraper struct {
	fetcher Fetcher
	cfg     Config
	base    *url.URL
	logger  *zap.Logger
}

// New creates a Scraper.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Pages <= 0 {
		cfg.Pages = 1
	}
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{fetcher: fetcher, cfg: cfg, base: base, logger: logger}, nil
}

// Run fetches every page and writes the vacancies to w. Failed pages are
// logged and skipped.
func (s *Scraper) Run(ctx context.Context, w *ingestion.Writer) (Stats, error) {
	var stats Stats
	for page := 1; page <= s.cfg.Pages; page++ {
		if page > 1 && s.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(s.cfg.Delay):
			}
		}

		pageURL := s.pageURL(page)
		stats.Pages++

		body, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FailedPages++
			s.logger.Warn("fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		rows, err := ParseListing(strings.NewReader(body), s.base, s.cfg.Selectors)
		if err != nil {
			stats.FailedPages++
			s.logger.Warn("parse failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return stats, err
			}
		}
		stats.Rows += len(rows)
		s.logger.Info("page scraped",
			zap.Int("page", page),
			zap.Int("of", s.cfg.Pages),
			zap.Int("jobs", len(rows)))
	}
	return stats, w.Flush()
}

func (s *Scraper) pageURL(page int) string {
	u := *s.base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
