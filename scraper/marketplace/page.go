package marketplace

import "context"

// Browser opens pages in one browser session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close()
}

// Page is the subset of browser automation the extractor needs. All calls
// act on one live document and must be used sequentially.
type Page interface {
	// Navigate loads url and waits until the listing anchor is present.
	Navigate(ctx context.Context, url string) error
	// DismissOverlay closes the login prompt if one is showing.
	DismissOverlay(ctx context.Context) error
	// CountListings returns the number of listing links currently rendered.
	CountListings(ctx context.Context) (int, error)
	// ScrollToBottom triggers lazy loading of further listings.
	ScrollToBottom(ctx context.Context) error
	// HTML captures the rendered document.
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}
