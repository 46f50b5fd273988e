package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkloadPhase represents the observed lifecycle phase of a tenant workload pod.
type WorkloadPhase string

const (
	// WorkloadPhaseCreating means the pod has been requested but is not yet running.
	WorkloadPhaseCreating WorkloadPhase = "Creating"
	// WorkloadPhaseRunning means the pod reports the Running phase.
	WorkloadPhaseRunning WorkloadPhase = "Running"
	// WorkloadPhaseUnknown means the pod's phase could not be determined.
	WorkloadPhaseUnknown WorkloadPhase = "Unknown"
)

// Defaults applied by the accessor methods when spec fields are left empty.
const (
	DefaultModel          = "standard"
	DefaultCPU            = "500m"
	DefaultMemory         = "1Gi"
	DefaultTimeoutSeconds = 3600
	DefaultPort           = 8000
)

// WorkloadResources holds the compute sizing for a tenant workload.
// Requests are always set equal to limits; there is no burstable tier.
type WorkloadResources struct {
	// CPU is the CPU request and limit (e.g. "500m").
	// +optional
	CPU string `json:"cpu,omitempty"`

	// Memory is the memory request and limit (e.g. "1Gi").
	// +optional
	Memory string `json:"memory,omitempty"`
}

// TenantWorkloadSpec defines the desired state of TenantWorkload.
type TenantWorkloadSpec struct {
	// TenantID is the opaque identity string derived from the caller's
	// API key and instance id. It is the stable key for this record.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	TenantID string `json:"tenantID"`

	// Model selects the logical workload variant.
	// +optional
	// +kubebuilder:default="standard"
	Model string `json:"model,omitempty"`

	// Resources is the compute sizing for the workload pod.
	// +optional
	Resources WorkloadResources `json:"resources,omitempty"`

	// TimeoutSeconds is the idle duration after which the workload is
	// reclaimed. Measured against status.lastActivity.
	// +optional
	// +kubebuilder:default=3600
	// +kubebuilder:validation:Minimum=1
	TimeoutSeconds int64 `json:"timeoutSeconds,omitempty"`

	// Port is the port the workload container serves on.
	// +optional
	// +kubebuilder:default=8000
	Port int32 `json:"port,omitempty"`
}

// TenantWorkloadStatus defines the observed state of TenantWorkload.
// All fields are always present; empty values mean "not yet known".
type TenantWorkloadStatus struct {
	// PodName is the name of the pod backing this record. Set by the
	// first successful reconciliation and never changed afterwards.
	// +optional
	PodName string `json:"podName,omitempty"`

	// Phase mirrors the backing pod's reported phase.
	// +optional
	// +kubebuilder:validation:Enum=Creating;Running;Unknown;""
	Phase WorkloadPhase `json:"phase,omitempty"`

	// LastActivity is the time of the last gateway touch or
	// reconciliation. Monotonically non-decreasing.
	// +optional
	LastActivity metav1.Time `json:"lastActivity,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=tw
// +kubebuilder:printcolumn:name="Tenant",type=string,JSONPath=`.spec.tenantID`
// +kubebuilder:printcolumn:name="Pod",type=string,JSONPath=`.status.podName`
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// TenantWorkload is the Schema for the tenantworkloads API.
// It declares one tenant's desired workload pod; the controller keeps a
// matching pod alive and reclaims it after idle timeout.
type TenantWorkload struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   TenantWorkloadSpec   `json:"spec,omitempty"`
	Status TenantWorkloadStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// TenantWorkloadList contains a list of TenantWorkload.
type TenantWorkloadList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []TenantWorkload `json:"items"`
}

//nolint:gochecknoinits // kubebuilder scheme registration pattern
func init() {
	SchemeBuilder.Register(&TenantWorkload{}, &TenantWorkloadList{})
}

// ModelOrDefault returns the workload model, defaulting to "standard".
func (s *TenantWorkloadSpec) ModelOrDefault() string {
	if s.Model == "" {
		return DefaultModel
	}
	return s.Model
}

// CPUOrDefault returns the CPU sizing, defaulting to "500m".
func (s *TenantWorkloadSpec) CPUOrDefault() string {
	if s.Resources.CPU == "" {
		return DefaultCPU
	}
	return s.Resources.CPU
}

// MemoryOrDefault returns the memory sizing, defaulting to "1Gi".
func (s *TenantWorkloadSpec) MemoryOrDefault() string {
	if s.Resources.Memory == "" {
		return DefaultMemory
	}
	return s.Resources.Memory
}

// TimeoutOrDefault returns the idle timeout in seconds, defaulting to 3600.
func (s *TenantWorkloadSpec) TimeoutOrDefault() int64 {
	if s.TimeoutSeconds == 0 {
		return DefaultTimeoutSeconds
	}
	return s.TimeoutSeconds
}

// PortOrDefault returns the serving port, defaulting to 8000.
func (s *TenantWorkloadSpec) PortOrDefault() int32 {
	if s.Port == 0 {
		return DefaultPort
	}
	return s.Port
}
