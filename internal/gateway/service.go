// Package gateway is the HTTP-facing surface of the control plane. It maps
// caller credentials to tenant workload records and answers either with
// routing information or with a provisioning status.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
	"github.com/podlease/podlease/internal/identity"
	"github.com/podlease/podlease/internal/metrics"
)

// WorkloadDefaults is the spec applied to records created on first touch.
// Empty fields fall back to the API-level defaults.
type WorkloadDefaults struct {
	Model          string
	CPU            string
	Memory         string
	TimeoutSeconds int64
	Port           int32
}

// Service implements find-or-create and route resolution over the cluster
// gateway. It holds no tenant state of its own; identity re-derivation maps
// callers to record names.
type Service struct {
	cluster      *cluster.Gateway
	metrics      metrics.Collector
	logger       *slog.Logger
	nameTemplate string
	defaults     WorkloadDefaults
}

// NewService creates a gateway Service.
func NewService(
	c *cluster.Gateway,
	nameTemplate string,
	defaults WorkloadDefaults,
	collector metrics.Collector,
	logger *slog.Logger,
) *Service {
	return &Service{
		cluster:      c,
		metrics:      collector,
		logger:       logger,
		nameTemplate: nameTemplate,
		defaults:     defaults,
	}
}

// FindOrCreate resolves the record for an (API key, instance id) pair,
// creating it with the default spec when absent. A concurrent create for the
// same identity resolves through the conflict path to the single surviving
// record. The returned record may have an empty status, which callers must
// treat as "still provisioning".
func (s *Service) FindOrCreate(ctx context.Context, apiKey, instanceID string) (*v1alpha1.TenantWorkload, error) {
	tenantID := identity.Derive(apiKey, instanceID)
	name := identity.RecordName(s.nameTemplate, tenantID)

	record, err := s.cluster.GetRecord(ctx, name)
	if err != nil {
		return nil, err
	}

	if record != nil {
		s.touch(ctx, record)
		s.metrics.RecordFindOrCreate(ctx, "hit")

		return record, nil
	}

	record = &v1alpha1.TenantWorkload{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: v1alpha1.TenantWorkloadSpec{
			TenantID: tenantID,
			Model:    s.defaults.Model,
			Resources: v1alpha1.WorkloadResources{
				CPU:    s.defaults.CPU,
				Memory: s.defaults.Memory,
			},
			TimeoutSeconds: s.defaults.TimeoutSeconds,
			Port:           s.defaults.Port,
		},
	}

	err = s.cluster.CreateRecord(ctx, record)
	if err != nil {
		if cluster.IsConflict(err) {
			// Lost a duplicate-create race; the other caller's record is
			// the one true record for this identity.
			s.metrics.RecordFindOrCreate(ctx, "conflict")

			existing, getErr := s.cluster.GetRecord(ctx, name)
			if getErr != nil {
				return nil, getErr
			}

			if existing != nil {
				return existing, nil
			}
		}

		return nil, err
	}

	s.logger.Info("created record", "record", name, "tenant", tenantID)
	s.metrics.RecordFindOrCreate(ctx, "created")

	return record, nil
}

// touch refreshes the record's lastActivity. Failures are logged, not
// surfaced: a stale activity stamp only shortens the idle grace, it does
// not break routing.
func (s *Service) touch(ctx context.Context, record *v1alpha1.TenantWorkload) {
	status := record.Status
	status.LastActivity = metav1.Now()

	if err := s.cluster.PatchRecordStatus(ctx, record, status); err != nil {
		s.logger.Warn("failed to refresh record activity", "record", record.Name, "error", err)
	}
}

// RouteTarget resolves the network address of a record's workload. The
// second return is false while the workload is still provisioning or its
// address is not yet known.
func (s *Service) RouteTarget(ctx context.Context, record *v1alpha1.TenantWorkload) (string, bool, error) {
	if record.Status.PodName == "" || record.Status.Phase != v1alpha1.WorkloadPhaseRunning {
		return "", false, nil
	}

	pod, err := s.cluster.GetPod(ctx, record.Status.PodName)
	if err != nil {
		return "", false, err
	}

	if pod == nil || pod.Status.PodIP == "" {
		return "", false, nil
	}

	port := strconv.Itoa(int(record.Spec.PortOrDefault()))

	return net.JoinHostPort(pod.Status.PodIP, port), true, nil
}

// ListRecords passes through to the cluster gateway for the admin surface.
func (s *Service) ListRecords(ctx context.Context) (*v1alpha1.TenantWorkloadList, error) {
	return s.cluster.ListRecords(ctx)
}

// DeleteRecord passes through to the cluster gateway for the admin surface.
func (s *Service) DeleteRecord(ctx context.Context, name string) error {
	return s.cluster.DeleteRecord(ctx, name)
}
