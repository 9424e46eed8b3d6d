package services

import (
	"context"
	"fmt"
	"marketplace-watcher/models"
	"time"

	"github.com/rs/zerolog"
)

type Extractor interface {
	Extract(ctx context.Context, sourceURLs []string) ([]models.ListingRecord, error)
}

type SnapshotStore interface {
	Load() models.Snapshot
	Save(snap models.Snapshot) error
}

type Notifier interface {
	DispatchAll(ctx context.Context, changes []models.Change) models.DispatchReport
}

// Archive receives every classified record of a cycle. Optional.
type Archive interface {
	Record(ctx context.Context, changes []models.Change, observedAt time.Time) error
}

// Cycle runs one pass: extract, load, detect, notify, save.
type Cycle struct {
	sources   []string
	extractor Extractor
	store     SnapshotStore
	notifier  Notifier
	archive   Archive
	now       func() time.Time
	log       zerolog.Logger
}

func NewCycle(sources []string, extractor Extractor, store SnapshotStore, notifier Notifier, log zerolog.Logger) *Cycle {
	return &Cycle{
		sources:   sources,
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		now:       time.Now,
		log:       log.With().Str("component", "Cycle").Logger(),
	}
}

func (c *Cycle) WithArchive(a Archive) *Cycle {
	c.archive = a
	return c
}

// Run executes one cycle. Extraction and save failures are returned; a
// notification or archive failure is only logged. A cancelled ctx leaves
// the stored snapshot untouched.
func (c *Cycle) Run(ctx context.Context) (Report, error) {
	started := c.now()

	listings, err := c.extractor.Extract(ctx, c.sources)
	if err != nil {
		return Report{}, fmt.Errorf("extraction failed: %w", err)
	}

	snap := c.store.Load()
	now := c.now()
	changes := Detect(listings, snap, now)

	dispatch := c.notifier.DispatchAll(ctx, changes)

	// Listings that were never sent must stay unseen for the next run.
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("cycle interrupted before save: %w", err)
	}

	if c.archive != nil {
		if err := c.archive.Record(ctx, changes, now); err != nil {
			c.log.Warn().Err(err).Msg("Could not archive observations")
		}
	}

	if err := c.store.Save(snap); err != nil {
		return Report{}, fmt.Errorf("could not save listings: %w", err)
	}

	report := BuildReport(changes, dispatch, len(snap), c.now().Sub(started))
	c.log.Info().
		Int("extracted", report.Extracted).
		Int("new", report.New).
		Int("price_changed", report.PriceChanged).
		Int("unchanged", report.Unchanged).
		Int("delivery_failures", report.DeliveryFailures).
		Int("stored", report.Stored).
		Dur("duration", report.Duration).
		Msg("Cycle complete")
	return report, nil
}
