package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/podlease/podlease/api/v1alpha1"
	"github.com/podlease/podlease/internal/cluster"
)

// Headers of the forward-auth contract.
const (
	// forwardedURIHeader carries the original request path from the proxy.
	forwardedURIHeader = "X-Forwarded-Uri"
	// workloadAddressHeader tells the proxy where to forward the request.
	workloadAddressHeader = "X-Workload-Address"
	// tenantIDHeader reports the resolved tenant on decide responses.
	tenantIDHeader = "X-Tenant-ID"
	// apiKeyHeader carries the caller's credential on the polling surface.
	apiKeyHeader = "X-API-Key"
)

// retryAfterSeconds is the hint returned with provisioning (202) responses.
const retryAfterSeconds = 2

type instanceResponse struct {
	WorkloadName string `json:"workloadName"`
	Phase        string `json:"phase"`
	TenantID     string `json:"tenantId"`
}

type provisioningResponse struct {
	Message string `json:"message"`
	Phase   string `json:"phase"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type handlers struct {
	service *Service
	logger  *slog.Logger
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *handlers) writeProvisioning(w http.ResponseWriter, record *v1alpha1.TenantWorkload) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	h.writeJSON(w, http.StatusAccepted, provisioningResponse{
		Message: "workload is provisioning",
		Phase:   string(record.Status.Phase),
	})
}

// writeBackendError hides backend detail from callers; the wrapped error
// goes to the log only.
func (h *handlers) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("backend failure",
		"path", r.URL.Path,
		"request_id", r.Header.Get(requestIDHeader),
		"error", err,
	)
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
}

// handleHealthz answers liveness probes.
func (h *handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz answers readiness probes.
func (h *handlers) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInstance is the client polling surface: find-or-create the caller's
// record and report ready (200) or provisioning (202).
func (h *handlers) handleInstance(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(apiKeyHeader)
	if apiKey == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing " + apiKeyHeader + " header"})

		return
	}

	instanceID := mux.Vars(r)["instanceID"]

	record, err := h.service.FindOrCreate(r.Context(), apiKey, instanceID)
	if err != nil {
		h.writeBackendError(w, r, err)

		return
	}

	if record.Status.PodName == "" || record.Status.Phase != v1alpha1.WorkloadPhaseRunning {
		h.writeProvisioning(w, record)

		return
	}

	h.writeJSON(w, http.StatusOK, instanceResponse{
		WorkloadName: record.Status.PodName,
		Phase:        string(record.Status.Phase),
		TenantID:     record.Spec.TenantID,
	})
}

// handleAdminList lists all records.
func (h *handlers) handleAdminList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListRecords(r.Context())
	if err != nil {
		h.writeBackendError(w, r, err)

		return
	}

	items := make([]instanceResponse, 0, len(records.Items))
	for i := range records.Items {
		record := &records.Items[i]
		items = append(items, instanceResponse{
			WorkloadName: record.Status.PodName,
			Phase:        string(record.Status.Phase),
			TenantID:     record.Spec.TenantID,
		})
	}

	h.writeJSON(w, http.StatusOK, items)
}

// handleAdminDelete deletes one record by name. The watch delete path tears
// down the backing pod.
func (h *handlers) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	err := h.service.DeleteRecord(r.Context(), name)
	if err != nil {
		if cluster.IsNotFound(err) {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Message: "record not found"})

			return
		}

		h.writeBackendError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDecide is the forward-auth surface. The reverse proxy sends the
// original request path in X-Forwarded-Uri, shaped
// /workspaces/{apiKey}/instances/{instanceID}/... ; the response either
// carries the workload address for the proxy to forward to, or a 202 telling
// it to have the client retry.
func (h *handlers) handleDecide(w http.ResponseWriter, r *http.Request) {
	forwarded := r.Header.Get(forwardedURIHeader)
	if forwarded == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing " + forwardedURIHeader + " header"})

		return
	}

	apiKey, instanceID, ok := parseForwardedPath(forwarded)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "malformed forwarded path"})

		return
	}

	record, err := h.service.FindOrCreate(r.Context(), apiKey, instanceID)
	if err != nil {
		h.writeBackendError(w, r, err)

		return
	}

	target, ready, err := h.service.RouteTarget(r.Context(), record)
	if err != nil {
		h.writeBackendError(w, r, err)

		return
	}

	if !ready {
		h.writeProvisioning(w, record)

		return
	}

	w.Header().Set(workloadAddressHeader, target)
	w.Header().Set(tenantIDHeader, record.Spec.TenantID)
	h.writeJSON(w, http.StatusOK, instanceResponse{
		WorkloadName: record.Status.PodName,
		Phase:        string(record.Status.Phase),
		TenantID:     record.Spec.TenantID,
	})
}

// parseForwardedPath extracts the API key and instance id positionally from
// a forwarded path of the form /workspaces/{apiKey}/instances/{instanceID}[/...].
func parseForwardedPath(path string) (apiKey, instanceID string, ok bool) {
	// Strip any query the proxy forwarded along.
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 4 {
		return "", "", false
	}

	if segments[0] != "workspaces" || segments[2] != "instances" {
		return "", "", false
	}

	if segments[1] == "" || segments[3] == "" {
		return "", "", false
	}

	return segments[1], segments[3], true
}
