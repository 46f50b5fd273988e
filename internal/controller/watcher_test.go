package controller

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/metrics"
)

// streamRecorder captures every watch stream the client hands out, so tests
// can count subscriptions and kill them mid-flight.
type streamRecorder struct {
	mu      sync.Mutex
	streams []watch.Interface
}

func (r *streamRecorder) funcs() *interceptor.Funcs {
	return &interceptor.Funcs{
		Watch: func(ctx context.Context, c client.WithWatch, list client.ObjectList, opts ...client.ListOption) (watch.Interface, error) {
			stream, err := c.Watch(ctx, list, opts...)
			if err != nil {
				return nil, err
			}

			r.mu.Lock()
			r.streams = append(r.streams, stream)
			r.mu.Unlock()

			return stream, nil
		},
	}
}

func (r *streamRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.streams)
}

func (r *streamRecorder) stream(i int) watch.Interface {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.streams[i]
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	t.Parallel()

	fakeClient := newFakeClient(nil)
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	ctx := context.Background()

	require.NoError(t, watcher.Start(ctx))
	require.NoError(t, watcher.Start(ctx)) // second start is a no-op

	watcher.Stop()
	watcher.Stop() // second stop is a no-op
}

func TestWatcher_SubscriptionOpenBeforeStartReturns(t *testing.T) {
	t.Parallel()

	recorder := &streamRecorder{}
	fakeClient := newFakeClient(recorder.funcs())
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	// No sleep: the stream must exist the moment Start returns, or events
	// racing the startup are lost.
	assert.Equal(t, 1, recorder.count())
}

func TestWatcher_StartFailsWhenWatchCannotOpen(t *testing.T) {
	t.Parallel()

	fakeClient := newFakeClient(&interceptor.Funcs{
		Watch: func(_ context.Context, _ client.WithWatch, _ client.ObjectList, _ ...client.ListOption) (watch.Interface, error) {
			return nil, apierrors.NewServiceUnavailable("apiserver starting")
		},
	})
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	require.Error(t, watcher.Start(context.Background()))

	// A failed start leaves the watcher stopped.
	watcher.Stop()
}

func TestWatcher_ReconcilesOnAdd(t *testing.T) {
	t.Parallel()

	fakeClient := newFakeClient(nil)
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	ctx := context.Background()

	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	record := testRecord("abcd1234", v1alpha1.TenantWorkloadStatus{})
	require.NoError(t, gw.CreateRecord(ctx, record))

	require.Eventually(t, func() bool {
		pod, err := gw.GetPod(ctx, "tw-abcd1234")

		return err == nil && pod != nil
	}, 5*time.Second, 20*time.Millisecond, "workload pod was not created from the add event")
}

func TestWatcher_TearsDownOnDelete(t *testing.T) {
	t.Parallel()

	record := testRecord("abcd1234", v1alpha1.TenantWorkloadStatus{
		PodName:      "tw-abcd1234",
		Phase:        v1alpha1.WorkloadPhaseRunning,
		LastActivity: metav1.Now(),
	})
	pod := runningPod("tw-abcd1234")

	fakeClient := newFakeClient(nil, record, pod)
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	ctx := context.Background()

	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	require.NoError(t, gw.DeleteRecord(ctx, record.Name))

	require.Eventually(t, func() bool {
		got, err := gw.GetPod(ctx, "tw-abcd1234")

		return err == nil && got == nil
	}, 5*time.Second, 20*time.Millisecond, "workload pod was not deleted from the delete event")
}

func TestWatcher_ResubscribesAfterStreamEnds(t *testing.T) {
	t.Parallel()

	recorder := &streamRecorder{}
	fakeClient := newFakeClient(recorder.funcs())
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	ctx := context.Background()

	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	// Kill the stream out from under the watcher, as an apiserver would.
	recorder.stream(0).Stop()

	require.Eventually(t, func() bool {
		return recorder.count() >= 2
	}, 5*time.Second, 20*time.Millisecond, "watch was not re-opened after the stream ended")

	record := testRecord("abcd1234", v1alpha1.TenantWorkloadStatus{})
	require.NoError(t, gw.CreateRecord(ctx, record))

	require.Eventually(t, func() bool {
		pod, err := gw.GetPod(ctx, "tw-abcd1234")

		return err == nil && pod != nil
	}, 5*time.Second, 20*time.Millisecond, "record was not reconciled through the re-opened watch")
}

func TestWatcher_StopEndsEventDelivery(t *testing.T) {
	t.Parallel()

	fakeClient := newFakeClient(nil)
	reconciler, gw := newTestReconciler(t, fakeClient)
	watcher := NewWatcher(gw, reconciler, 10*time.Millisecond, metrics.NewNoopCollector(), slog.Default())

	ctx := context.Background()

	require.NoError(t, watcher.Start(ctx))
	watcher.Stop()

	// Records created after Stop are not reconciled.
	record := testRecord("ffff0000", v1alpha1.TenantWorkloadStatus{})
	require.NoError(t, gw.CreateRecord(ctx, record))

	time.Sleep(100 * time.Millisecond)

	pod, err := gw.GetPod(ctx, "tw-ffff0000")
	require.NoError(t, err)
	assert.Nil(t, pod)
}
