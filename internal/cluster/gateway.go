// Package cluster wraps the Kubernetes API for the record and pod
// operations the controller needs. Not-found and conflict outcomes stay
// distinguishable through the wrap so callers can branch on them.
package cluster

import (
	"context"

	"github.com/cockroachdb/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/podlease/podlease/api/v1alpha1"
)

// Gateway is a thin wrapper over the cluster API client, scoped to one
// namespace. All durable state lives behind it; the controller holds no
// in-process state about records or pods.
type Gateway struct {
	client    client.WithWatch
	namespace string
}

// New creates a Gateway scoped to the given namespace.
func New(c client.WithWatch, namespace string) *Gateway {
	return &Gateway{
		client:    c,
		namespace: namespace,
	}
}

// Namespace returns the namespace this gateway operates in.
func (g *Gateway) Namespace() string {
	return g.namespace
}

// IsNotFound reports whether err (possibly wrapped) is a not-found from the API server.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// IsConflict reports whether err (possibly wrapped) is a duplicate-create conflict.
func IsConflict(err error) bool {
	return apierrors.IsAlreadyExists(err)
}

// GetPod fetches a pod by name. Returns (nil, nil) when the pod does not exist.
func (g *Gateway) GetPod(ctx context.Context, name string) (*corev1.Pod, error) {
	var pod corev1.Pod

	err := g.client.Get(ctx, types.NamespacedName{Name: name, Namespace: g.namespace}, &pod)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "failed to get pod %s", name)
	}

	return &pod, nil
}

// CreatePod creates a pod. A duplicate-create conflict is returned
// recognizably via IsConflict.
func (g *Gateway) CreatePod(ctx context.Context, pod *corev1.Pod) error {
	pod.Namespace = g.namespace

	if err := g.client.Create(ctx, pod); err != nil {
		return errors.Wrapf(err, "failed to create pod %s", pod.Name)
	}

	return nil
}

// DeletePod deletes a pod by name. Not-found is returned recognizably via
// IsNotFound so callers can treat it as already-gone.
func (g *Gateway) DeletePod(ctx context.Context, name string) error {
	pod := &corev1.Pod{}
	pod.Name = name
	pod.Namespace = g.namespace

	if err := g.client.Delete(ctx, pod); err != nil {
		return errors.Wrapf(err, "failed to delete pod %s", name)
	}

	return nil
}

// ListPodsByLabel lists pods in the namespace matching the label selector.
func (g *Gateway) ListPodsByLabel(ctx context.Context, selector map[string]string) (*corev1.PodList, error) {
	var pods corev1.PodList

	err := g.client.List(ctx, &pods,
		client.InNamespace(g.namespace),
		client.MatchingLabels(selector),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pods by label")
	}

	return &pods, nil
}

// GetRecord fetches a TenantWorkload by name. Returns (nil, nil) when absent.
func (g *Gateway) GetRecord(ctx context.Context, name string) (*v1alpha1.TenantWorkload, error) {
	var record v1alpha1.TenantWorkload

	err := g.client.Get(ctx, types.NamespacedName{Name: name, Namespace: g.namespace}, &record)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "failed to get record %s", name)
	}

	return &record, nil
}

// ListRecords lists all TenantWorkload records in the namespace.
func (g *Gateway) ListRecords(ctx context.Context) (*v1alpha1.TenantWorkloadList, error) {
	var records v1alpha1.TenantWorkloadList

	err := g.client.List(ctx, &records, client.InNamespace(g.namespace))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list records")
	}

	return &records, nil
}

// CreateRecord creates a TenantWorkload. A duplicate-create conflict is
// returned recognizably via IsConflict.
func (g *Gateway) CreateRecord(ctx context.Context, record *v1alpha1.TenantWorkload) error {
	record.Namespace = g.namespace

	if err := g.client.Create(ctx, record); err != nil {
		return errors.Wrapf(err, "failed to create record %s", record.Name)
	}

	return nil
}

// PatchRecordStatus applies status onto the record via a merge patch against
// the status subresource. The record's in-memory status is updated in place.
func (g *Gateway) PatchRecordStatus(
	ctx context.Context,
	record *v1alpha1.TenantWorkload,
	status v1alpha1.TenantWorkloadStatus,
) error {
	base := record.DeepCopy()
	record.Status = status

	if err := g.client.Status().Patch(ctx, record, client.MergeFrom(base)); err != nil {
		return errors.Wrapf(err, "failed to patch status of record %s", record.Name)
	}

	return nil
}

// DeleteRecord deletes a TenantWorkload by name. Not-found is returned
// recognizably via IsNotFound.
func (g *Gateway) DeleteRecord(ctx context.Context, name string) error {
	record := &v1alpha1.TenantWorkload{}
	record.Name = name
	record.Namespace = g.namespace

	if err := g.client.Delete(ctx, record); err != nil {
		return errors.Wrapf(err, "failed to delete record %s", name)
	}

	return nil
}

// WatchRecords opens a watch over the TenantWorkload collection in the
// namespace. The caller owns the returned watch and must Stop it.
func (g *Gateway) WatchRecords(ctx context.Context) (watch.Interface, error) {
	var records v1alpha1.TenantWorkloadList

	w, err := g.client.Watch(ctx, &records, client.InNamespace(g.namespace))
	if err != nil {
		return nil, errors.Wrap(err, "failed to watch records")
	}

	return w, nil
}
