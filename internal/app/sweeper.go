package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
)

const (
	defaultSweepInterval  = 15 * time.Second
	defaultSweepBatchSize = 100
)

// HoldExpirer releases a single lapsed hold. ReservationService implements it.
type HoldExpirer interface {
	ExpireHold(ctx context.Context, entryID string) (bool, error)
}

// Sweeper periodically returns lapsed holds to stock.
type Sweeper struct {
	lister    ExpiredHoldLister
	expirer   HoldExpirer
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	opts      options
}

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewSweeper(lister ExpiredHoldLister, expirer HoldExpirer, clk clock.Clock, cfg SweeperConfig, opts ...Option) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &Sweeper{
		lister:    lister,
		expirer:   expirer,
		clock:     clk,
		interval:  interval,
		batchSize: batch,
		opts:      buildOptions(opts),
	}
}

// SweepOnce expires every hold that has lapsed and returns how many it
// released. Entries are listed batchSize at a time until a short batch comes
// back. Entries settled concurrently by a payment confirmation are skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	released := 0
	for {
		entries, err := s.lister.ListExpiredEntries(ctx, now, s.batchSize)
		if err != nil {
			return released, err
		}

		progressed := false
		for _, entry := range entries {
			if ctx.Err() != nil {
				return released, ctx.Err()
			}
			ok, err := s.expirer.ExpireHold(ctx, entry.ID)
			if err != nil {
				s.opts.logger.Error("expire hold failed", "entry_id", entry.ID, "error", err)
				continue
			}
			// A settled entry drops out of the listing too.
			progressed = true
			if ok {
				released++
			}
		}

		// Stop on a short batch, or when every entry failed and would be
		// listed again unchanged.
		if len(entries) < s.batchSize || !progressed {
			return released, nil
		}
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.opts.logger.Error("sweep failed", "error", err)
				}
				continue
			}
			if count > 0 {
				s.opts.logger.Info("expired holds released", "count", count)
			}
		}
	}
}
