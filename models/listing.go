package models

import (
	"net/url"
	"strings"
)

// Price keeps the raw price tokens exactly as they were rendered on the page.
type Price struct {
	Current string `json:"current"`
	Old     string `json:"old,omitempty"`
}

// ListingRecord is one marketplace listing keyed by its canonical URL.
type ListingRecord struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Kilometers string `json:"kilometers"`
	Price      Price  `json:"price"`
	ImageURL   string `json:"imageUrl,omitempty"`

	// LastChecked is epoch milliseconds of the latest re-observation.
	// Zero until the listing has been seen in at least two cycles.
	LastChecked int64 `json:"lastChecked,omitempty"`

	// ProbeFailures counts consecutive failed image probes during purge sweeps.
	ProbeFailures int `json:"probeFailures,omitempty"`
}

// Snapshot maps canonical URL to the latest known record for it.
type Snapshot map[string]ListingRecord

// CanonicalURL strips the query string and fragment from a listing link.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
