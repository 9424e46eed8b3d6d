package marketplace

import (
	"context"
	"errors"
	"fmt"
	"marketplace-watcher/models"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage simulates a lazily loading document: every scroll reveals the
// next entry of growth (or nothing once growth is exhausted).
type fakePage struct {
	htmlByURL map[string]string
	navErr    error
	overlay   error
	start     int
	growth    []int

	current  string
	count    int
	scrolls  int
	closed   bool
	visited  []string
	captured int
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.current = url
	p.visited = append(p.visited, url)
	p.count = p.start
	p.scrolls = 0
	return nil
}

func (p *fakePage) DismissOverlay(context.Context) error { return p.overlay }

func (p *fakePage) CountListings(context.Context) (int, error) { return p.count, nil }

func (p *fakePage) ScrollToBottom(context.Context) error {
	if p.scrolls < len(p.growth) {
		p.count += p.growth[p.scrolls]
	}
	p.scrolls++
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.captured++
	return p.htmlByURL[p.current], nil
}

func (p *fakePage) Screenshot(context.Context, string) error { return nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct{ page *fakePage }

func (b *fakeBrowser) NewPage(context.Context) (Page, error) { return b.page, nil }
func (b *fakeBrowser) Close()                                {}

func testOptions() Options {
	return Options{MaxStalls: 5, MaxListings: 64, PriceToken: "AU$"}
}

// gridHTML renders a minimal page in the expected layout with one card per href.
func gridHTML(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="seo_pivots"></div><div></div><div></div><div><div><div></div><div>`)
	for i, href := range hrefs {
		fmt.Fprintf(&b, `<a href="%s"><div><div><img src="http://img/%d.jpg"></div><div>`+
			`<span>AU$%d</span><span>Car %d</span><span>Here</span><span>1 km</span></div></div></a>`,
			href, i, 1000*(i+1), i)
	}
	b.WriteString(`</div></div></div></body></html>`)
	return b.String()
}

func TestConverge_StopsAfterMaxStalls(t *testing.T) {
	page := &fakePage{start: 24}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	stats, err := e.converge(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 5, page.scrolls)
	assert.Equal(t, 5, stats.Iterations)
	assert.Equal(t, 5, stats.Stalls)
	assert.Equal(t, 24, stats.Count)
}

func TestConverge_StopsWhenCeilingExceeded(t *testing.T) {
	page := &fakePage{start: 24, growth: []int{24, 24, 24, 24}}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	stats, err := e.converge(context.Background(), page)
	require.NoError(t, err)

	// 24 -> 48 -> 72 exceeds 64 after two scrolls
	assert.Equal(t, 2, page.scrolls)
	assert.Equal(t, 0, stats.Stalls)
	assert.Equal(t, 72, stats.Count)
}

func TestConverge_SlowPageGetsRepeatedChances(t *testing.T) {
	page := &fakePage{start: 10, growth: []int{0, 0, 8, 0, 8}}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	stats, err := e.converge(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 26, stats.Count)
	assert.Equal(t, 5, stats.Stalls)
	assert.Equal(t, 7, page.scrolls)
}

func TestExtract_DedupAcrossSources(t *testing.T) {
	page := &fakePage{
		start: 1,
		htmlByURL: map[string]string{
			"http://x/page1": gridHTML("http://x/listing/1?ref=abc", "http://x/listing/2"),
			"http://x/page2": gridHTML("http://x/listing/1?ref=xyz", "http://x/listing/3?ref=q"),
		},
	}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	records, err := e.Extract(context.Background(), []string{"http://x/page1", "http://x/page2"})
	require.NoError(t, err)

	urls := make([]string, 0, len(records))
	for _, r := range records {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"http://x/listing/1", "http://x/listing/2", "http://x/listing/3"}, urls)

	// first-seen wins: the record for listing 1 comes from page 1
	assert.Equal(t, "Car 0", records[0].Name)
	assert.Equal(t, "1000", records[0].Price.Current)

	assert.Equal(t, []string{"http://x/page1", "http://x/page2"}, page.visited)
	assert.Equal(t, 2, page.captured)
	assert.True(t, page.closed)
}

func TestExtract_SingleKeyForQueryVariants(t *testing.T) {
	page := &fakePage{
		start: 1,
		htmlByURL: map[string]string{
			"http://x/page1": gridHTML("http://x/listing/1?ref=abc"),
			"http://x/page2": gridHTML("http://x/listing/1?ref=xyz"),
		},
	}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	records, err := e.Extract(context.Background(), []string{"http://x/page1", "http://x/page2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "http://x/listing/1", records[0].URL)
}

func TestExtract_NavigationFailureIsFatal(t *testing.T) {
	page := &fakePage{navErr: fmt.Errorf("%w: timeout", ErrAnchorMissing)}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	records, err := e.Extract(context.Background(), []string{"http://x/page1"})
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrAnchorMissing)
	assert.True(t, page.closed)
}

func TestExtract_OverlayFailureIsIgnored(t *testing.T) {
	page := &fakePage{
		start:     1,
		overlay:   errors.New("no overlay"),
		htmlByURL: map[string]string{"http://x/page1": gridHTML("http://x/listing/9")},
	}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop())

	records, err := e.Extract(context.Background(), []string{"http://x/page1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExtract_CustomParser(t *testing.T) {
	page := &fakePage{start: 1, htmlByURL: map[string]string{}}
	e := NewExtractor(&fakeBrowser{page}, testOptions(), zerolog.Nop()).
		WithParser(func(_, pageURL, _ string) ([]models.ListingRecord, error) {
			return []models.ListingRecord{{URL: pageURL + "/only"}}, nil
		})

	records, err := e.Extract(context.Background(), []string{"http://x/p"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/p/only", records[0].URL)
}
