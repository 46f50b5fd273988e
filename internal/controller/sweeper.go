package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/metrics"
)

// DefaultSweepInterval is how often the idle cleanup scan runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically deletes records whose idle duration exceeds their
// configured timeout. Deleting a record triggers the watch delete path,
// which tears down the backing pod; the sweep does not wait for that.
type Sweeper struct {
	cluster  *cluster.Gateway
	metrics  metrics.Collector
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to
// DefaultSweepInterval.
func NewSweeper(
	c *cluster.Gateway,
	interval time.Duration,
	collector metrics.Collector,
	logger *slog.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		cluster:  c,
		metrics:  collector,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks, scanning on a fixed interval until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs one cleanup scan. Per-record delete failures are
// logged and do not abort the scan.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := time.Now()

	records, err := s.cluster.ListRecords(ctx)
	if err != nil {
		s.logger.Error("cleanup scan failed to list records", "error", err)
		s.metrics.RecordSweepError(ctx, metrics.ClassifyAPIError(err))

		return
	}

	evicted := 0

	for i := range records.Items {
		record := &records.Items[i]

		if record.Status.LastActivity.IsZero() {
			continue
		}

		idle := time.Since(record.Status.LastActivity.Time)
		timeout := time.Duration(record.Spec.TimeoutOrDefault()) * time.Second

		if idle <= timeout {
			continue
		}

		err := s.cluster.DeleteRecord(ctx, record.Name)
		if err != nil {
			if cluster.IsNotFound(err) {
				continue
			}

			s.logger.Error("failed to delete idle record", "record", record.Name, "error", err)
			s.metrics.RecordSweepError(ctx, metrics.ClassifyAPIError(err))

			continue
		}

		s.logger.Info("deleted idle record",
			"record", record.Name,
			"tenant", record.Spec.TenantID,
			"idle", idle.Truncate(time.Second),
		)

		evicted++
	}

	s.metrics.RecordSweep(ctx, evicted, time.Since(start))
}
