package services

import (
	"marketplace-watcher/models"
	"time"
)

// Detect classifies each fresh record against snap and overwrites the
// snapshot entry with the fresh record. Re-observed records (changed or not)
// get LastChecked = now; a record seen for the first time stays unstamped
// until its next sighting. Entries absent from fresh are left alone.
func Detect(fresh []models.ListingRecord, snap models.Snapshot, now time.Time) []models.Change {
	changes := make([]models.Change, 0, len(fresh))
	stamp := now.UnixMilli()

	for _, rec := range fresh {
		prior, ok := snap[rec.URL]
		if ok {
			rec.LastChecked = stamp
		} else {
			rec.LastChecked = 0
		}
		change := models.Change{Record: rec}

		switch {
		case !ok:
			change.Classification = models.New
		case prior.Price.Current != rec.Price.Current:
			change.Classification = models.PriceChanged
			change.Prior = &prior
		default:
			change.Classification = models.Unchanged
			change.Prior = &prior
		}

		snap[rec.URL] = rec
		changes = append(changes, change)
	}
	return changes
}

// Notable keeps the New and PriceChanged changes, in order.
func Notable(changes []models.Change) []models.Change {
	var out []models.Change
	for _, c := range changes {
		if c.Classification.Notable() {
			out = append(out, c)
		}
	}
	return out
}
