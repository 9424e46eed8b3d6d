package app

import (
	"context"
	"fmt"
	"marketplace-watcher/config"
	"marketplace-watcher/models"
	"marketplace-watcher/notifier"
	"marketplace-watcher/scraper/marketplace"
	"marketplace-watcher/services"
	"marketplace-watcher/storage"

	"github.com/rs/zerolog"
)

// chromeExtractor launches a fresh browser for every cycle and closes it
// afterwards.
type chromeExtractor struct {
	cfg config.BrowserConfig
	log zerolog.Logger
}

func (e chromeExtractor) Extract(ctx context.Context, sourceURLs []string) ([]models.ListingRecord, error) {
	browser, err := marketplace.NewChromeBrowser(ctx, e.cfg, e.log)
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	return marketplace.NewExtractor(browser, marketplace.OptionsFromConfig(e.cfg), e.log).Extract(ctx, sourceURLs)
}

// buildCycle wires one scrape cycle from config. The returned cleanup
// releases the archive connection when one was opened.
func buildCycle(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*services.Cycle, func(), error) {
	if err := cfg.RequireSources(); err != nil {
		return nil, nil, err
	}
	if cfg.Webhook.URL == "" {
		logger.Warn().Msg("No webhook url configured, notifications are skipped")
	}

	store := storage.NewJSONStore(cfg.Store.Path, logger)
	dispatcher := notifier.NewDispatcher(
		notifier.NewWebhookClient(cfg.Webhook, logger),
		cfg.Webhook.Mention,
		cfg.Scheduler.ShowTimers,
		logger,
	)

	cycle := services.NewCycle(cfg.SourceURLs, chromeExtractor{cfg: cfg.Browser, log: logger}, store, dispatcher, logger)
	cleanup := func() {}

	if cfg.Archive.DSN != "" {
		archive, err := storage.NewPostgresArchive(ctx, cfg.Archive.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open observation archive: %w", err)
		}
		if err := archive.EnsureSchema(ctx); err != nil {
			archive.Close()
			return nil, nil, err
		}
		cycle.WithArchive(archive)
		cleanup = archive.Close
	}

	return cycle, cleanup, nil
}
