package marketplace

import (
	"errors"
	"fmt"
	"marketplace-watcher/models"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrAnchorMissing = errors.New("listing anchor not found")

// ParseFunc turns a captured document into listing records.
type ParseFunc func(html, pageURL, priceToken string) ([]models.ListingRecord, error)

// ParseListings extracts listings from a rendered marketplace page.
//
// Layout: the anchor is followed (as element siblings) by two sections and
// then the results section; its first child's second child is the grid,
// and every link in the grid is one listing card:
//
//	a
//	└─ div
//	   ├─ div  (img)
//	   └─ div  (price, name, location, kilometers)
//
// Cards that do not match are skipped. A missing anchor or grid is an error.
func ParseListings(html, pageURL, priceToken string) ([]models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	anchor := doc.Find(AnchorSelector).First()
	if anchor.Length() == 0 {
		return nil, ErrAnchorMissing
	}
	grid := listingContainer(anchor)
	if grid.Length() == 0 {
		return nil, fmt.Errorf("%w: listing grid missing after anchor", ErrAnchorMissing)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	var records []models.ListingRecord
	grid.Find("a").Each(func(_ int, a *goquery.Selection) {
		if rec, ok := parseCard(a, base, priceToken); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

func listingContainer(anchor *goquery.Selection) *goquery.Selection {
	return anchor.NextAll().Eq(2).Children().Eq(0).Children().Eq(1)
}

func parseCard(a *goquery.Selection, base *url.URL, priceToken string) (models.ListingRecord, bool) {
	href, _ := a.Attr("href")
	link := resolve(base, href)
	if link == "" {
		return models.ListingRecord{}, false
	}

	card := a.Children().Eq(0)
	fields := card.Children().Eq(1).Children()
	if fields.Length() < 4 {
		return models.ListingRecord{}, false
	}

	current, old := SplitPrice(fields.Eq(0).Text(), priceToken)

	var image string
	if src, ok := card.Children().Eq(0).Find("img").First().Attr("src"); ok {
		image = resolve(base, src)
	}

	return models.ListingRecord{
		URL:        models.CanonicalURL(link),
		Name:       fields.Eq(1).Text(),
		Location:   fields.Eq(2).Text(),
		Kilometers: fields.Eq(3).Text(),
		Price:      models.Price{Current: current, Old: old},
		ImageURL:   image,
	}, true
}

// SplitPrice splits the price cell on the currency token. Whatever follows
// the first token is the current price and whatever follows the second, if
// present, the struck-through old price:
// "AU$12,000AU$15,000" -> ("12,000", "15,000"). Text without the token
// carries no price. Values are returned as displayed.
func SplitPrice(text, token string) (current, old string) {
	if token == "" {
		return text, ""
	}
	parts := strings.Split(text, token)[1:]
	if len(parts) > 0 {
		current = parts[0]
	}
	if len(parts) > 1 {
		old = parts[1]
	}
	return current, old
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}
