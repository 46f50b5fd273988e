package v1alpha1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestModelOrDefault_Default(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{}

	assert.Equal(t, "standard", spec.ModelOrDefault())
}

func TestModelOrDefault_Custom(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{Model: "large"}

	assert.Equal(t, "large", spec.ModelOrDefault())
}

func TestCPUOrDefault_Default(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{}

	assert.Equal(t, "500m", spec.CPUOrDefault())
}

func TestCPUOrDefault_Custom(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{
		Resources: WorkloadResources{CPU: "2"},
	}

	assert.Equal(t, "2", spec.CPUOrDefault())
}

func TestMemoryOrDefault_Default(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{}

	assert.Equal(t, "1Gi", spec.MemoryOrDefault())
}

func TestMemoryOrDefault_IndependentOfCPU(t *testing.T) {
	t.Parallel()

	// Each sizing field defaults on its own.
	spec := &TenantWorkloadSpec{
		Resources: WorkloadResources{CPU: "2"},
	}

	assert.Equal(t, "1Gi", spec.MemoryOrDefault())
	assert.Equal(t, "2", spec.CPUOrDefault())
}

func TestTimeoutOrDefault_Default(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{}

	assert.Equal(t, int64(3600), spec.TimeoutOrDefault())
}

func TestTimeoutOrDefault_Custom(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{TimeoutSeconds: 120}

	assert.Equal(t, int64(120), spec.TimeoutOrDefault())
}

func TestPortOrDefault(t *testing.T) {
	t.Parallel()

	spec := &TenantWorkloadSpec{}
	assert.Equal(t, int32(8000), spec.PortOrDefault())

	spec.Port = 9090
	assert.Equal(t, int32(9090), spec.PortOrDefault())
}

func TestTenantWorkloadDeepCopy_StatusIndependence(t *testing.T) {
	t.Parallel()

	now := metav1.NewTime(time.Now())

	workload := &TenantWorkload{
		Spec: TenantWorkloadSpec{TenantID: "abcd1234"},
		Status: TenantWorkloadStatus{
			PodName:      "tw-abcd1234",
			Phase:        WorkloadPhaseRunning,
			LastActivity: now,
		},
	}

	clone := workload.DeepCopy()
	clone.Status.Phase = WorkloadPhaseUnknown
	clone.Status.LastActivity = metav1.NewTime(now.Add(time.Hour))

	assert.Equal(t, WorkloadPhaseRunning, workload.Status.Phase)
	assert.Equal(t, now, workload.Status.LastActivity)
}
