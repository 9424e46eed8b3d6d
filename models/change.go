package models

// Classification is the outcome of comparing a fresh record with the stored one.
type Classification int

const (
	New Classification = iota
	PriceChanged
	Unchanged
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case PriceChanged:
		return "price_changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Notable reports whether the classification should produce a notification.
func (c Classification) Notable() bool {
	return c == New || c == PriceChanged
}

// Change is one classified record. Prior is nil for New records.
type Change struct {
	Record         ListingRecord
	Classification Classification
	Prior          *ListingRecord
}

// DeliveryResult is the outcome of sending one notification.
type DeliveryResult struct {
	URL            string
	Classification Classification
	Err            error
}

// DispatchReport aggregates the outcomes of one dispatch run.
type DispatchReport struct {
	Results    []DeliveryResult
	Changes    int
	SummaryErr error
}

// Failed returns the number of notifications that could not be delivered.
func (r DispatchReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
