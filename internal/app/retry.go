package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// retry runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. fn must start from scratch on every call.
func retry(ctx context.Context, o options, fn func() error) error {
	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrTransient) {
			return err
		}
		o.logger.Warn("transient storage failure", "attempt", attempt, "error", err)
		if attempt == o.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, ctx.Err())
		case <-time.After(o.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
