// Package manifest synthesizes workload pod manifests from tenant specs.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/metrics"
)

// Well-known labels and annotations on workload pods.
const (
	// LabelRole marks a pod as a tenant workload. Image discovery keys on it.
	LabelRole = "podlease.dev/role"
	// RoleWorkload is the LabelRole value for workload pods.
	RoleWorkload = "workload"
	// LabelTenant carries the tenant identity on the workload pod.
	LabelTenant = "podlease.dev/tenant"

	// AnnotationIdleTimeout mirrors spec.timeoutSeconds onto the pod.
	AnnotationIdleTimeout = "podlease.dev/idle-timeout-seconds"
	// AnnotationLastActivity mirrors status.lastActivity onto the pod.
	AnnotationLastActivity = "podlease.dev/last-activity"
)

const (
	containerName         = "workload"
	healthPath            = "/healthz"
	terminationGraceSecs  = int64(10)
	readinessInitialDelay = int32(2)
	livenessInitialDelay  = int32(10)
	probePeriodSecs       = int32(10)
)

// Synthesizer maps tenant workload specs to concrete pod manifests.
// BuildPod is pure and never fails; only image discovery can fall back.
type Synthesizer struct {
	cluster      *cluster.Gateway
	metrics      metrics.Collector
	logger       *slog.Logger
	defaultImage string
}

// NewSynthesizer creates a Synthesizer. The cluster gateway is used only for
// image discovery.
func NewSynthesizer(
	c *cluster.Gateway,
	defaultImage string,
	collector metrics.Collector,
	logger *slog.Logger,
) *Synthesizer {
	return &Synthesizer{
		cluster:      c,
		metrics:      collector,
		logger:       logger,
		defaultImage: defaultImage,
	}
}

// DiscoverImage inspects currently running workload pods and returns the
// image of the first match. The second return is false when no running
// workload exists or the query fails; the error is logged, never returned.
// Running one updated workload by hand is how operators roll out a new
// image without redeploying the controller.
func (s *Synthesizer) DiscoverImage(ctx context.Context) (string, bool) {
	pods, err := s.cluster.ListPodsByLabel(ctx, map[string]string{LabelRole: RoleWorkload})
	if err != nil {
		s.logger.Warn("image discovery query failed, will fall back", "error", err)

		return "", false
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}

		if len(pod.Spec.Containers) == 0 {
			continue
		}

		return pod.Spec.Containers[0].Image, true
	}

	return "", false
}

// ResolveImage returns the image to use for new workload pods: the
// discovered one if any workload is running, otherwise the default.
// It never fails.
func (s *Synthesizer) ResolveImage(ctx context.Context) string {
	if image, ok := s.DiscoverImage(ctx); ok {
		s.metrics.RecordImageDiscovery(ctx, "discovered")

		return image
	}

	s.metrics.RecordImageDiscovery(ctx, "fallback")

	return s.defaultImage
}

// parseQuantity parses a resource quantity from the record spec. A record
// can carry any string here (nothing validates it on admission), so a
// malformed value falls back to the package default rather than failing
// synthesis.
func (s *Synthesizer) parseQuantity(value, fallback string) resource.Quantity {
	quantity, err := resource.ParseQuantity(value)
	if err != nil {
		s.logger.Warn("malformed resource quantity, using default",
			"value", value,
			"default", fallback,
			"error", err,
		)

		return resource.MustParse(fallback)
	}

	return quantity
}

// BuildPod synthesizes the pod manifest for a record. All spec fields are
// defaulted, so synthesis cannot fail. Requests are set equal to limits.
func (s *Synthesizer) BuildPod(record *v1alpha1.TenantWorkload, podName, image string) *corev1.Pod {
	spec := &record.Spec
	port := spec.PortOrDefault()
	grace := terminationGraceSecs

	quantities := corev1.ResourceList{
		corev1.ResourceCPU:    s.parseQuantity(spec.CPUOrDefault(), v1alpha1.DefaultCPU),
		corev1.ResourceMemory: s.parseQuantity(spec.MemoryOrDefault(), v1alpha1.DefaultMemory),
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: podName,
			Labels: map[string]string{
				LabelRole:   RoleWorkload,
				LabelTenant: spec.TenantID,
			},
			Annotations: map[string]string{
				AnnotationIdleTimeout:  strconv.FormatInt(spec.TimeoutOrDefault(), 10),
				AnnotationLastActivity: record.Status.LastActivity.Format(time.RFC3339),
			},
		},
		Spec: corev1.PodSpec{
			TerminationGracePeriodSeconds: &grace,
			RestartPolicy:                 corev1.RestartPolicyAlways,
			Containers: []corev1.Container{
				{
					Name:  containerName,
					Image: image,
					Ports: []corev1.ContainerPort{
						{Name: "http", ContainerPort: port},
					},
					Env: []corev1.EnvVar{
						{Name: "TENANT_ID", Value: spec.TenantID},
						{Name: "WORKLOAD_MODEL", Value: spec.ModelOrDefault()},
						{Name: "PORT", Value: fmt.Sprintf("%d", port)},
					},
					Resources: corev1.ResourceRequirements{
						Requests: quantities,
						Limits:   quantities,
					},
					ReadinessProbe: &corev1.Probe{
						ProbeHandler: corev1.ProbeHandler{
							HTTPGet: &corev1.HTTPGetAction{
								Path: healthPath,
								Port: intstr.FromInt32(port),
							},
						},
						InitialDelaySeconds: readinessInitialDelay,
						PeriodSeconds:       probePeriodSecs,
					},
					LivenessProbe: &corev1.Probe{
						ProbeHandler: corev1.ProbeHandler{
							HTTPGet: &corev1.HTTPGetAction{
								Path: healthPath,
								Port: intstr.FromInt32(port),
							},
						},
						InitialDelaySeconds: livenessInitialDelay,
						PeriodSeconds:       probePeriodSecs,
					},
				},
			},
		},
	}
}
