package notifier

import (
	"context"
	"marketplace-watcher/models"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher sends one message per notable change, strictly in order and
// one at a time, followed by a single summary message.
type Dispatcher struct {
	poster       Poster
	mention      string
	showProgress bool
	now          func() time.Time
	log          zerolog.Logger
}

func NewDispatcher(poster Poster, mention string, showProgress bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		poster:       poster,
		mention:      mention,
		showProgress: showProgress,
		now:          time.Now,
		log:          log.With().Str("component", "Dispatcher").Logger(),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, change models.Change) error {
	return d.poster.Post(ctx, BuildChangeMessage(change, d.mention, d.now()))
}

func (d *Dispatcher) NotifySummary(ctx context.Context, count int) error {
	return d.poster.Post(ctx, BuildSummaryMessage(count, d.now()))
}

// DispatchAll notifies every New or PriceChanged change and then sends the
// summary. Failures are logged and recorded per item; they never stop the
// loop and never lower the summary count.
func (d *Dispatcher) DispatchAll(ctx context.Context, changes []models.Change) models.DispatchReport {
	var report models.DispatchReport

	for i, change := range changes {
		if !change.Classification.Notable() {
			continue
		}
		report.Changes++

		if d.showProgress {
			d.log.Info().
				Int("listing", i+1).
				Int("total", len(changes)).
				Int("percent", (i+1)*100/len(changes)).
				Msg("Sending webhook")
		}

		err := d.Notify(ctx, change)
		if err != nil {
			d.log.Error().Err(err).Str("url", change.Record.URL).Stringer("classification", change.Classification).
				Msg("Error sending webhook")
		}
		report.Results = append(report.Results, models.DeliveryResult{
			URL:            change.Record.URL,
			Classification: change.Classification,
			Err:            err,
		})
	}

	if err := d.NotifySummary(ctx, report.Changes); err != nil {
		d.log.Error().Err(err).Msg("Error sending summary webhook")
		report.SummaryErr = err
	}

	d.log.Info().Int("changes", report.Changes).Int("failed", report.Failed()).Msg("Notifications dispatched")
	return report
}
