package server

import (
	"context"
	"marketplace-watcher/models"
)

type PurgeSummary struct {
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

type prober interface {
	ProbeAll(ctx context.Context, records map[string]models.ListingRecord) []ProbeResult
}

// Purge drops records that were never re-observed, probes the rest, and
// returns the survivors keyed by listing URL. A failing record is dropped
// once its consecutive failure count reaches threshold.
func Purge(ctx context.Context, snap models.Snapshot, p prober, threshold int) (models.Snapshot, PurgeSummary) {
	if threshold < 1 {
		threshold = 1
	}

	candidates := make(map[string]models.ListingRecord, len(snap))
	for key, rec := range snap {
		if rec.LastChecked == 0 {
			continue
		}
		candidates[key] = rec
	}

	survivors := make(models.Snapshot, len(candidates))
	for _, result := range p.ProbeAll(ctx, candidates) {
		rec := result.Record
		if result.Alive() {
			rec.ProbeFailures = 0
		} else {
			rec.ProbeFailures++
			if rec.ProbeFailures >= threshold {
				continue
			}
		}

		key := rec.URL
		if key == "" {
			key = result.Key
		}
		survivors[key] = rec
	}

	return survivors, PurgeSummary{Kept: len(survivors), Dropped: len(snap) - len(survivors)}
}
