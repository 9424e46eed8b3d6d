package storage

import (
	"context"
	"fmt"
	"marketplace-watcher/models"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ensureArchiveSchemaSQL = `
CREATE TABLE IF NOT EXISTS listing_observations (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL,
	name TEXT,
	price_current TEXT,
	price_old TEXT,
	location TEXT,
	kilometers TEXT,
	image_url TEXT,
	classification TEXT NOT NULL,
	previous_price TEXT,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listing_observations_url ON listing_observations(url);
CREATE INDEX IF NOT EXISTS idx_listing_observations_observed_at ON listing_observations(observed_at);
`

const insertObservationSQL = `
INSERT INTO listing_observations
	(url, name, price_current, price_old, location, kilometers, image_url, classification, previous_price, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

// PostgresArchive keeps a price history: every classified record of every
// cycle is appended as one row. The JSON snapshot stays the source of truth
// for change detection.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	// Fail fast if the database is not reachable instead of hanging the cycle
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := a.pool.Exec(ctx, ensureArchiveSchemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Record appends one row per change, all in a single batch.
func (a *PostgresArchive) Record(ctx context.Context, changes []models.Change, observedAt time.Time) error {
	batch, queued := buildObservationBatch(changes, observedAt)
	if queued == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// One round trip for the whole cycle
	results := a.pool.SendBatch(ctx, batch)
	defer results.Close() // IMPORTANT: the connection is held until results are closed

	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert failed at row %d: %w", i, err)
		}
	}
	return nil
}

func buildObservationBatch(changes []models.Change, observedAt time.Time) (*pgx.Batch, int) {
	batch := &pgx.Batch{}
	queued := 0
	for _, c := range changes {
		url := strings.TrimSpace(c.Record.URL)
		if url == "" {
			continue
		}

		var previous any
		if c.Prior != nil {
			previous = c.Prior.Price.Current
		}

		batch.Queue(
			insertObservationSQL,
			url,
			c.Record.Name,
			c.Record.Price.Current,
			nullable(c.Record.Price.Old),
			c.Record.Location,
			c.Record.Kilometers,
			nullable(c.Record.ImageURL),
			c.Classification.String(),
			previous,
			observedAt.UTC(),
		)
		queued++
	}
	return batch, queued
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
