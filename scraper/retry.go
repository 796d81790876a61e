package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/postwatch/models"
)

// connectionReset is the Chromium net error treated as transient.
const connectionReset = "net::ERR_CONNECTION_RESET"

// RetryPolicy bounds navigation attempts. Only connection resets are
// retried; every other failure ends the run on the spot.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the pause after each retryable failure.
	Delay time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs attempt until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. Failures are returned as NAVIGATION_FAILED
// RunErrors wrapping the last cause.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, attempt func(ctx context.Context, n int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for n := 1; n <= maxAttempts; n++ {
		err = attempt(ctx, n)
		if err == nil {
			return nil
		}
		if !IsConnectionReset(err) {
			return categorizeError(err, fmt.Sprintf("navigation failed on attempt %d", n))
		}
		if n == maxAttempts {
			break
		}

		logger.Warn("connection reset, retrying",
			"attempt", n,
			"delay", p.Delay,
		)
		if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
			return categorizeError(sleepErr, "navigation retry interrupted")
		}
	}

	return models.NewRunError(
		models.ErrCodeNavigation,
		fmt.Sprintf("connection reset on all %d attempts", maxAttempts),
		err,
	)
}

// IsConnectionReset reports whether err is a navigation failure caused by
// the remote end resetting the connection.
func IsConnectionReset(err error) bool {
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return strings.Contains(navErr.Reason, connectionReset)
	}
	return err != nil && strings.Contains(err.Error(), connectionReset)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// categorizeError wraps raw errors into typed RunErrors so the caller can
// report a stable code.
func categorizeError(err error, msg string) *models.RunError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRunError(models.ErrCodeNavigation, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewRunError(models.ErrCodeNavigation, "navigation canceled", err)
	default:
		return models.NewRunError(models.ErrCodeNavigation, msg, err)
	}
}
