package notifier

import (
	"fmt"
	"marketplace-watcher/models"
	"time"
)

const (
	embedColor = 0x3d8eff

	usernameNew          = "New listing found!"
	usernamePriceChanged = "Listing - Price change (%s)"

	summaryNoUpdates = "No updates to price / or new listings found."
	summaryUpdates   = "Update complete - found %d new/updated listings."
)

// BuildChangeMessage renders the webhook message for a New or PriceChanged
// listing.
func BuildChangeMessage(change models.Change, mention string, now time.Time) MessagePayload {
	rec := change.Record

	embed := Embed{
		Title:     rec.Name,
		URL:       rec.URL,
		Timestamp: now.UTC().Format(time.RFC3339),
		Color:     embedColor,
		Footer:    &EmbedFooter{Text: rec.Location},
	}

	msg := MessagePayload{Content: mention}

	if change.Classification == models.PriceChanged && change.Prior != nil {
		msg.Username = fmt.Sprintf(usernamePriceChanged, rec.Name)
		embed.Fields = []EmbedField{
			{Name: "Kilometers", Value: fieldValue(rec.Kilometers)},
			{Name: "Price", Value: fmt.Sprintf("%s => %s", change.Prior.Price.Current, rec.Price.Current)},
		}
	} else {
		msg.Username = usernameNew
		embed.Fields = []EmbedField{
			{Name: "Kilometers", Value: fieldValue(rec.Kilometers)},
			{Name: "Price", Value: fieldValue(rec.Price.Current)},
		}
	}

	if rec.ImageURL != "" {
		embed.Image = &EmbedImage{URL: rec.ImageURL}
	}

	msg.Embeds = []Embed{embed}
	return msg
}

// BuildSummaryMessage renders the end-of-run message. The <t:..:R> tag is
// shown by Discord as a relative time.
func BuildSummaryMessage(count int, now time.Time) MessagePayload {
	text := summaryNoUpdates
	if count > 0 {
		text = fmt.Sprintf(summaryUpdates, count)
	}
	return MessagePayload{Content: fmt.Sprintf("[<t:%d:R>] %s", now.Unix(), text)}
}

// Discord rejects embed fields with empty values.
func fieldValue(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
