package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/metrics"
)

// DefaultWatchBackoff is the delay before re-opening a failed watch stream.
const DefaultWatchBackoff = 5 * time.Second

// Watcher maintains a single long-lived subscription to TenantWorkload
// events and drives the Reconciler from them. A dropped stream is re-opened
// after a fixed backoff, indefinitely, until Stop is called.
//
// Start and Stop are idempotent. Stop prevents new events from being
// delivered but does not cancel a reconciliation already in flight.
type Watcher struct {
	cluster    *cluster.Gateway
	reconciler *Reconciler
	metrics    metrics.Collector
	logger     *slog.Logger
	backoff    time.Duration

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a Watcher. A non-positive backoff falls back to
// DefaultWatchBackoff.
func NewWatcher(
	c *cluster.Gateway,
	reconciler *Reconciler,
	backoff time.Duration,
	collector metrics.Collector,
	logger *slog.Logger,
) *Watcher {
	if backoff <= 0 {
		backoff = DefaultWatchBackoff
	}

	return &Watcher{
		cluster:    c,
		reconciler: reconciler,
		metrics:    collector,
		logger:     logger,
		backoff:    backoff,
	}
}

// Start opens the subscription and begins dispatching events. The first
// watch is established before Start returns, so an event arriving right
// after Start cannot fall into an unsubscribed gap. Starting an
// already-started Watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)

	stream, err := w.cluster.WatchRecords(watchCtx)
	if err != nil {
		cancel()

		return errors.Wrap(err, "failed to open record watch")
	}

	w.watching = true
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(watchCtx, stream, w.done)

	return nil
}

// Stop ends the subscription and waits for the event loop to exit.
// Stopping an already-stopped Watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()

	if !w.watching {
		w.mu.Unlock()

		return
	}

	w.watching = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
}

func (w *Watcher) run(ctx context.Context, stream watch.Interface, done chan struct{}) {
	defer close(done)

	for {
		w.logger.Info("watching tenant workload records")
		w.consume(ctx, stream)

		if ctx.Err() != nil {
			return
		}

		w.logger.Warn("record watch stream ended, restarting", "backoff", w.backoff)

		stream = w.reopen(ctx)
		if stream == nil {
			return
		}
	}
}

// reopen blocks until a fresh watch stream is established, sleeping one
// backoff period before each attempt. It returns nil when the context ends.
func (w *Watcher) reopen(ctx context.Context) watch.Interface {
	for {
		if !w.sleep(ctx) {
			return nil
		}

		w.metrics.RecordWatchRestart(ctx)

		stream, err := w.cluster.WatchRecords(ctx)
		if err == nil {
			return stream
		}

		if ctx.Err() != nil {
			return nil
		}

		w.logger.Error("failed to re-open record watch, retrying", "error", err, "backoff", w.backoff)
	}
}

// sleep waits one backoff period. It returns false when the context ended first.
func (w *Watcher) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Watcher) consume(ctx context.Context, stream watch.Interface) {
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream.ResultChan():
			if !ok {
				return
			}

			w.handle(ctx, event)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event watch.Event) {
	w.metrics.RecordWatchEvent(ctx, string(event.Type))

	if event.Type == watch.Error {
		w.logger.Warn("error event on record watch", "object", event.Object)

		return
	}

	record, ok := event.Object.(*v1alpha1.TenantWorkload)
	if !ok {
		w.logger.Warn("unexpected object type on record watch", "type", event.Type)

		return
	}

	switch event.Type {
	case watch.Added, watch.Modified:
		err := w.reconciler.Reconcile(ctx, record)

		switch {
		case err == nil:
		case cluster.IsConflict(err):
			w.logger.Info("record already reconciled elsewhere", "record", record.Name)
		default:
			// One record's failure never halts the loop.
			w.logger.Error("failed to reconcile record", "record", record.Name, "error", err)
		}
	case watch.Deleted:
		// The delete event carries the record's final state, which names
		// the pod to tear down.
		if err := w.reconciler.Teardown(ctx, record.Status); err != nil {
			w.logger.Error("failed to tear down workload", "record", record.Name, "error", err)
		}
	case watch.Bookmark, watch.Error:
	}
}
