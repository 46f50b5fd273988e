package controller

import (
	"context"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/identity"
	"github.com/podlease/podlease/internal/manifest"
	"github.com/podlease/podlease/internal/metrics"
)

// staleActivityThreshold bounds how stale lastActivity may get before a
// reconciliation refreshes it even when the phase is unchanged.
const staleActivityThreshold = 60 * time.Second

// Reconciler makes the observed state (workload pod) match the declared
// state (TenantWorkload record) and mirrors the pod's phase back into the
// record's status. It only ever creates pods; an existing pod is never
// mutated.
type Reconciler struct {
	cluster      *cluster.Gateway
	synthesizer  *manifest.Synthesizer
	metrics      metrics.Collector
	logger       *slog.Logger
	nameTemplate string
}

// NewReconciler creates a Reconciler. nameTemplate renders the pod name
// from the tenant identity when the record's status has none yet.
func NewReconciler(
	c *cluster.Gateway,
	synth *manifest.Synthesizer,
	nameTemplate string,
	collector metrics.Collector,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		cluster:      c,
		synthesizer:  synth,
		metrics:      collector,
		logger:       logger,
		nameTemplate: nameTemplate,
	}
}

// Reconcile ensures the record's workload pod exists and that the record's
// status mirrors the pod's observed phase. Errors other than not-found and
// conflict propagate to the caller; a duplicate-create conflict is success.
func (r *Reconciler) Reconcile(ctx context.Context, record *v1alpha1.TenantWorkload) error {
	start := time.Now()

	podName := record.Status.PodName
	if podName == "" {
		podName = identity.RecordName(r.nameTemplate, record.Spec.TenantID)
	}

	pod, err := r.cluster.GetPod(ctx, podName)
	if err != nil {
		r.metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
		r.metrics.RecordReconcile(ctx, "error", time.Since(start))

		return err
	}

	if pod == nil {
		err := r.createPod(ctx, record, podName)
		if err != nil {
			r.metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
			r.metrics.RecordReconcile(ctx, "error", time.Since(start))

			return err
		}

		r.metrics.RecordReconcile(ctx, "created", time.Since(start))

		return nil
	}

	phase := phaseForPod(pod)

	if !r.statusNeedsWrite(record, podName, phase) {
		r.metrics.RecordReconcile(ctx, "unchanged", time.Since(start))

		return nil
	}

	status := v1alpha1.TenantWorkloadStatus{
		PodName:      podName,
		Phase:        phase,
		LastActivity: metav1.Now(),
	}

	if err := r.cluster.PatchRecordStatus(ctx, record, status); err != nil {
		r.metrics.RecordReconcileError(ctx, metrics.ClassifyAPIError(err))
		r.metrics.RecordReconcile(ctx, "error", time.Since(start))

		return err
	}

	r.metrics.RecordReconcile(ctx, "updated", time.Since(start))

	return nil
}

func (r *Reconciler) createPod(ctx context.Context, record *v1alpha1.TenantWorkload, podName string) error {
	image := r.synthesizer.ResolveImage(ctx)
	pod := r.synthesizer.BuildPod(record, podName, image)

	err := r.cluster.CreatePod(ctx, pod)

	switch {
	case err == nil:
		r.logger.Info("created workload pod", "pod", podName, "tenant", record.Spec.TenantID, "image", image)
		r.metrics.RecordPodCreated(ctx)
	case cluster.IsConflict(err):
		// Another reconciliation won the create race between our existence
		// check and the create call. The pod exists, which is what we want.
		r.logger.Info("workload pod already exists", "pod", podName, "tenant", record.Spec.TenantID)
	default:
		return err
	}

	status := v1alpha1.TenantWorkloadStatus{
		PodName:      podName,
		Phase:        v1alpha1.WorkloadPhaseCreating,
		LastActivity: metav1.Now(),
	}

	return r.cluster.PatchRecordStatus(ctx, record, status)
}

// statusNeedsWrite reports whether a status patch is warranted: the phase
// changed, the pod name was never recorded, or lastActivity has gone stale.
func (r *Reconciler) statusNeedsWrite(
	record *v1alpha1.TenantWorkload,
	podName string,
	phase v1alpha1.WorkloadPhase,
) bool {
	if record.Status.PodName != podName {
		return true
	}

	if record.Status.Phase != phase {
		return true
	}

	return time.Since(record.Status.LastActivity.Time) > staleActivityThreshold
}

// Teardown deletes the pod named by a record's last-known status. A record
// that never got a pod is a no-op; a pod that is already gone is logged and
// swallowed so teardown stays idempotent.
func (r *Reconciler) Teardown(ctx context.Context, status v1alpha1.TenantWorkloadStatus) error {
	if status.PodName == "" {
		r.metrics.RecordTeardown(ctx, "noop")

		return nil
	}

	err := r.cluster.DeletePod(ctx, status.PodName)
	if err != nil {
		if cluster.IsNotFound(err) {
			r.logger.Debug("workload pod already gone", "pod", status.PodName)
			r.metrics.RecordTeardown(ctx, "already_gone")

			return nil
		}

		r.metrics.RecordTeardown(ctx, "error")

		return err
	}

	r.logger.Info("deleted workload pod", "pod", status.PodName)
	r.metrics.RecordTeardown(ctx, "deleted")

	return nil
}

func phaseForPod(pod *corev1.Pod) v1alpha1.WorkloadPhase {
	switch pod.Status.Phase {
	case corev1.PodRunning:
		return v1alpha1.WorkloadPhaseRunning
	case corev1.PodPending:
		return v1alpha1.WorkloadPhaseCreating
	default:
		return v1alpha1.WorkloadPhaseUnknown
	}
}
