package marketplace

import (
	"context"
	"fmt"
	"marketplace-watcher/config"
	"marketplace-watcher/models"
	"marketplace-watcher/utils"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options tunes the pagination-convergence loop and parsing.
type Options struct {
	ScrollWait    time.Duration
	MaxStalls     int
	MaxListings   int
	PriceToken    string
	MinPageDelay  time.Duration
	MaxPageDelay  time.Duration
	ScreenshotDir string
}

func OptionsFromConfig(cfg config.BrowserConfig) Options {
	return Options{
		ScrollWait:    cfg.ScrollWait,
		MaxStalls:     cfg.MaxStalls,
		MaxListings:   cfg.MaxListings,
		PriceToken:    cfg.PriceToken,
		MinPageDelay:  cfg.MinPageDelay,
		MaxPageDelay:  cfg.MaxPageDelay,
		ScreenshotDir: cfg.ScreenshotDir,
	}
}

// Extractor pulls listings from one or more source pages using a single
// browser page.
type Extractor struct {
	browser Browser
	opts    Options
	parse   ParseFunc
	log     zerolog.Logger
}

func NewExtractor(browser Browser, opts Options, log zerolog.Logger) *Extractor {
	return &Extractor{
		browser: browser,
		opts:    opts,
		parse:   ParseListings,
		log:     log.With().Str("component", "Extractor").Logger(),
	}
}

// WithParser replaces the layout-specific parse step.
func (e *Extractor) WithParser(fn ParseFunc) *Extractor {
	e.parse = fn
	return e
}

// Extract visits every source URL in order and returns the merged listings.
// A listing seen on an earlier source wins over later duplicates. Any
// navigation or measurement failure aborts the whole extraction.
func (e *Extractor) Extract(ctx context.Context, sourceURLs []string) ([]models.ListingRecord, error) {
	page, err := e.browser.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	var all []models.ListingRecord
	seen := make(map[string]bool)

	for i, src := range sourceURLs {
		if i > 0 {
			if err := utils.RandomDelay(ctx, e.opts.MinPageDelay, e.opts.MaxPageDelay); err != nil {
				return nil, err
			}
		}

		records, err := e.extractPage(ctx, page, i, src)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", src, err)
		}

		added := 0
		for _, rec := range records {
			if seen[rec.URL] {
				continue
			}
			seen[rec.URL] = true
			all = append(all, rec)
			added++
		}
		e.log.Info().Str("source", src).Int("found", len(records)).Int("added", added).Msg("Source page scraped")
	}

	e.log.Info().Int("listings", len(all)).Msg("Scraping complete")
	return all, nil
}

func (e *Extractor) extractPage(ctx context.Context, page Page, index int, src string) ([]models.ListingRecord, error) {
	e.log.Info().Str("source", src).Msg("Scraping site")

	if err := page.Navigate(ctx, src); err != nil {
		return nil, err
	}

	if err := page.DismissOverlay(ctx); err != nil {
		e.log.Debug().Err(err).Msg("Could not dismiss overlay")
	}

	stats, err := e.converge(ctx, page)
	if err != nil {
		return nil, err
	}
	e.log.Debug().
		Int("iterations", stats.Iterations).
		Int("stalls", stats.Stalls).
		Int("count", stats.Count).
		Msg("Pagination converged")

	if e.opts.ScreenshotDir != "" {
		path := filepath.Join(e.opts.ScreenshotDir, fmt.Sprintf("source-%d-%s.png", index, time.Now().Format("20060102-150405")))
		if err := os.MkdirAll(e.opts.ScreenshotDir, 0755); err != nil {
			e.log.Warn().Err(err).Msg("Could not create screenshot dir")
		} else if err := page.Screenshot(ctx, path); err != nil {
			e.log.Warn().Err(err).Msg("Screenshot failed")
		}
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return e.parse(html, src, e.opts.PriceToken)
}

// ConvergeStats describes how the pagination loop ended.
type ConvergeStats struct {
	Iterations int
	Stalls     int
	Count      int
}

// converge scrolls until the listing count stops growing MaxStalls times or
// exceeds MaxListings. Every iteration performs exactly one scroll, so the
// loop is bounded by MaxStalls rounds without growth.
func (e *Extractor) converge(ctx context.Context, page Page) (ConvergeStats, error) {
	var stats ConvergeStats

	count, err := page.CountListings(ctx)
	if err != nil {
		return stats, err
	}

	for stats.Stalls < e.opts.MaxStalls && count <= e.opts.MaxListings {
		before, err := page.CountListings(ctx)
		if err != nil {
			return stats, err
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			return stats, err
		}
		if err := utils.Sleep(ctx, e.opts.ScrollWait); err != nil {
			return stats, err
		}
		count, err = page.CountListings(ctx)
		if err != nil {
			return stats, err
		}
		stats.Iterations++
		if count == before {
			stats.Stalls++
		}
	}

	stats.Count = count
	return stats, nil
}
