package pipeline

import "context"

// BrowserFunc adapts a plain function to Browser. It is how cmd/postwatch
// injects scraper.Scraper without the pipeline importing go-rod.
type BrowserFunc func(ctx context.Context, credential string) (Session, error)

func (f BrowserFunc) Open(ctx context.Context, credential string) (Session, error) {
	return f(ctx, credential)
}
