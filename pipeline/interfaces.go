package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/use-agent/postwatch/extract"
	"github.com/use-agent/postwatch/models"
)

// Session is an open, authenticated browsing context.
type Session interface {
	Fetch(ctx context.Context, targetURL string) (extract.Page, error)
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Browser opens sessions carrying credential as the session cookie.
type Browser interface {
	Open(ctx context.Context, credential string) (Session, error)
}

type Extractor interface {
	Latest(ctx context.Context, page extract.Page, handle string) (*models.PostRecord, error)
}

// Notifier delivers one record, all or nothing.
type Notifier interface {
	Deliver(ctx context.Context, rec *models.PostRecord) error
}

// MarkerStore is the subset of state.Store a run needs.
type MarkerStore interface {
	Get(ctx context.Context, handle string) (string, bool, error)
	Put(ctx context.Context, handle, marker string) error
}

// Diagnostics records the state of a session after a failed run.
type Diagnostics interface {
	Capture(ctx context.Context, handle string, sess Session, cause error)
}
