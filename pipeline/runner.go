// Package pipeline runs one poll for one handle: read the marker, fetch the
// profile, extract the latest post, and deliver it if it is new.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/models"
)

var tracer = otel.Tracer("github.com/use-agent/postwatch/pipeline")

// diagnosticsTimeout bounds the capture after a failure, which runs even
// when the run's own context is already done.
const diagnosticsTimeout = 15 * time.Second

// Runner wires the components of a run together. A Runner may be reused
// for several sequential runs but is not safe for overlapping runs on the
// same handle.
type Runner struct {
	cfg         *config.Config
	browser     Browser
	extractor   Extractor
	notifier    Notifier
	store       MarkerStore
	diagnostics Diagnostics
	dryRun      bool
	logger      *slog.Logger
}

type Option func(*Runner)

// WithDiagnostics installs a hook that runs after any failure that
// happens while a session is open.
func WithDiagnostics(d Diagnostics) Option {
	return func(r *Runner) { r.diagnostics = d }
}

// WithDryRun skips delivery and the marker write.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

func NewRunner(
	cfg *config.Config,
	browser Browser,
	extractor Extractor,
	notifier Notifier,
	store MarkerStore,
	logger *slog.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		cfg:       cfg,
		browser:   browser,
		extractor: extractor,
		notifier:  notifier,
		store:     store,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one poll for handle and returns its terminal outcome.
//
// The marker is written only after a successful delivery, so any failure
// leaves it untouched and the next run retries the same post.
func (r *Runner) Run(ctx context.Context, handle string) (outcome models.Outcome, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("outcome", string(outcome)))
		}
		span.End()
	}()

	if err := r.cfg.Validate(); err != nil {
		return "", err
	}
	handle, err = models.NormalizeHandle(handle)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("handle", handle))
	logger := r.logger.With("handle", handle)

	var (
		marker string
		found  bool
	)
	err = r.step(ctx, "state.Get", func(ctx context.Context) error {
		var err error
		marker, found, err = r.store.Get(ctx, handle)
		if err != nil {
			return models.NewRunError(models.ErrCodeState, "failed to read marker", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Debug("marker loaded", "found", found, "marker", marker)

	var sess Session
	err = r.step(ctx, "browser.Open", func(ctx context.Context) error {
		var err error
		sess, err = r.browser.Open(ctx, r.cfg.Target.Credential)
		return asRunError(err, models.ErrCodeBrowserCrash, "failed to open browser session")
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("failed to close browser session", "error", cerr)
		}
	}()

	outcome, err = r.runSession(ctx, logger, sess, handle, marker, found)
	if err != nil && r.diagnostics != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsTimeout)
		r.diagnostics.Capture(dctx, handle, sess, err)
		cancel()
	}
	return outcome, err
}

func (r *Runner) runSession(ctx context.Context, logger *slog.Logger, sess Session, handle, marker string, found bool) (models.Outcome, error) {
	var rec *models.PostRecord
	err := r.step(ctx, "session.Fetch", func(ctx context.Context) error {
		page, err := sess.Fetch(ctx, r.cfg.ProfileURL(handle))
		if err != nil {
			return asRunError(err, models.ErrCodeNavigation, "failed to load profile")
		}
		rec, err = r.extractor.Latest(ctx, page, handle)
		return asRunError(err, models.ErrCodeExtraction, "failed to extract latest post")
	})
	if err != nil {
		return "", err
	}
	logger.Info("latest post", "url", rec.CanonicalURL, "timestamp", rec.Timestamp)

	if !IsNew(rec, marker, found) {
		logger.Info("no new post")
		return models.OutcomeUpToDate, nil
	}

	if r.dryRun {
		logger.Info("new post found, dry run: skipping delivery", "url", rec.CanonicalURL)
		return models.OutcomeDryRun, nil
	}

	err = r.step(ctx, "notifier.Deliver", func(ctx context.Context) error {
		return asRunError(r.notifier.Deliver(ctx, rec), models.ErrCodeDelivery, "failed to deliver post")
	})
	if err != nil {
		return "", err
	}

	err = r.step(ctx, "state.Put", func(ctx context.Context) error {
		if err := r.store.Put(ctx, handle, rec.CanonicalURL); err != nil {
			return models.NewRunError(models.ErrCodeState, "post delivered but marker not saved", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("marker write failed; the next run will deliver this post again",
			"url", rec.CanonicalURL, "error", err)
		return "", err
	}

	logger.Info("new post delivered", "url", rec.CanonicalURL)
	return models.OutcomeDelivered, nil
}

// step runs fn inside a child span.
func (r *Runner) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// asRunError passes RunErrors through and wraps anything else under code.
func asRunError(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	var re *models.RunError
	if errors.As(err, &re) {
		return err
	}
	return models.NewRunError(code, msg, err)
}
