package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/health"
)

// HealthHandler serves the liveness and system health endpoints.
type HealthHandler struct {
	coordinator *health.Coordinator // optional, nil on child nodes
	failedOps   domain.FailedOpStore
	logger      *slog.Logger
}

// NewHealthHandler creates a HealthHandler. coordinator may be nil when the
// node does not run the health control plane.
func NewHealthHandler(coordinator *health.Coordinator, failedOps domain.FailedOpStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		coordinator: coordinator,
		failedOps:   failedOps,
		logger:      logHandler(logger, "health"),
	}
}

// Liveness responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Report runs a full health check and returns the result.
// GET /api/health/report
func (h *HealthHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		writeError(w, http.StatusNotFound, "health coordinator not running on this node")
		return
	}

	report := h.coordinator.PerformHealthCheck(r.Context())

	type issueResponse struct {
		ChainID uint32 `json:"chain_id,omitempty"`
		Detail  string `json:"detail"`
	}
	issues := make([]issueResponse, 0, len(report.Issues))
	for _, i := range report.Issues {
		issues = append(issues, issueResponse{ChainID: i.ChainID, Detail: i.Detail})
	}

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy":    report.Healthy,
		"issues":     issues,
		"checked_at": report.CheckedAt.UTC().Format(time.RFC3339),
	})
}

// Confirmations returns per-chain delivery status of the most recent
// emergency instruction.
// GET /api/health/confirmations
func (h *HealthHandler) Confirmations(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		writeError(w, http.StatusNotFound, "health coordinator not running on this node")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"confirmations": h.coordinator.Confirmations(),
	})
}

// FailedOperations lists entries from the append-only failure log.
// GET /api/health/failed-operations
func (h *HealthHandler) FailedOperations(w http.ResponseWriter, r *http.Request) {
	if h.failedOps == nil {
		writeError(w, http.StatusNotFound, "failure log not configured")
		return
	}

	records, err := h.failedOps.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type failedOpResponse struct {
		ID            int64  `json:"id"`
		Timestamp     string `json:"timestamp"`
		OperationType string `json:"operation_type"`
		Origin        string `json:"origin"`
		ErrorMessage  string `json:"error_message"`
		Reference     string `json:"reference"`
	}
	out := make([]failedOpResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, failedOpResponse{
			ID:            rec.ID,
			Timestamp:     rec.Timestamp.UTC().Format(time.RFC3339),
			OperationType: rec.OperationType,
			Origin:        rec.Origin,
			ErrorMessage:  rec.ErrorMessage,
			Reference:     rec.Reference,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed_operations": out})
}

type reportFailureRequest struct {
	OperationType string `json:"operation_type"`
	Origin        string `json:"origin"`
	ErrorMessage  string `json:"error_message"`
	Reference     string `json:"reference"`
}

// ReportFailure appends an entry to the failure log. Deliberately open to any
// authenticated caller; failure records never mutate ledger state.
// POST /api/health/failed-operations
func (h *HealthHandler) ReportFailure(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		writeError(w, http.StatusNotFound, "health coordinator not running on this node")
		return
	}

	var req reportFailureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OperationType == "" || req.ErrorMessage == "" {
		writeError(w, http.StatusBadRequest, "operation_type and error_message are required")
		return
	}

	if err := h.coordinator.RecordFailedOperation(r.Context(),
		req.OperationType, req.Origin, req.ErrorMessage, req.Reference); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
