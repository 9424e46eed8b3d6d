package services

import (
	"fmt"
	"io"
	"marketplace-watcher/models"
	"time"
)

// Report summarises one cycle.
type Report struct {
	Extracted        int
	New              int
	PriceChanged     int
	Unchanged        int
	DeliveryFailures int
	SummaryFailed    bool
	Stored           int
	Duration         time.Duration
}

func BuildReport(changes []models.Change, dispatch models.DispatchReport, stored int, took time.Duration) Report {
	r := Report{
		Extracted:        len(changes),
		DeliveryFailures: dispatch.Failed(),
		SummaryFailed:    dispatch.SummaryErr != nil,
		Stored:           stored,
		Duration:         took,
	}
	for _, c := range changes {
		switch c.Classification {
		case models.New:
			r.New++
		case models.PriceChanged:
			r.PriceChanged++
		case models.Unchanged:
			r.Unchanged++
		}
	}
	return r
}

// Notable is the count reported in the summary message.
func (r Report) Notable() int {
	return r.New + r.PriceChanged
}

func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                 CYCLE COMPLETE               ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Listings scraped  : %-24d║\n", r.Extracted)
	fmt.Fprintf(w, "║  New               : %-24d║\n", r.New)
	fmt.Fprintf(w, "║  Price changed     : %-24d║\n", r.PriceChanged)
	fmt.Fprintf(w, "║  Unchanged         : %-24d║\n", r.Unchanged)
	fmt.Fprintf(w, "║  Failed webhooks   : %-24d║\n", r.DeliveryFailures)
	fmt.Fprintf(w, "║  Saved listings    : %-24d║\n", r.Stored)
	fmt.Fprintf(w, "║  Took              : %-24s║\n", r.Duration.Round(time.Second))
	fmt.Fprintln(w, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}
