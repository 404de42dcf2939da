package handler

import (
	"log/slog"
	"net/http"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/vault"
)

// ChildrenHandler serves the per-chain allocation endpoints.
type ChildrenHandler struct {
	vault  *vault.MotherVault
	snaps  domain.SnapshotStore // optional
	logger *slog.Logger
}

// NewChildrenHandler creates a ChildrenHandler. snaps may be nil when no
// snapshot store is configured; the snapshots endpoint then returns 404.
func NewChildrenHandler(v *vault.MotherVault, snaps domain.SnapshotStore, logger *slog.Logger) *ChildrenHandler {
	return &ChildrenHandler{
		vault:  v,
		snaps:  snaps,
		logger: logHandler(logger, "children"),
	}
}

// allocationResponse is the JSON view of one child allocation.
type allocationResponse struct {
	ChainID        uint32 `json:"chain_id"`
	VaultAddress   string `json:"vault_address"`
	DeployedAmount int64  `json:"deployed_amount"`
	ReportedAPYBps int64  `json:"reported_apy_bps"`
	LastReportTime string `json:"last_report_time,omitempty"`
	IsActive       bool   `json:"is_active"`
}

func toAllocationResponse(rec domain.ChildAllocationRecord) allocationResponse {
	resp := allocationResponse{
		ChainID:        rec.ChainID,
		VaultAddress:   rec.VaultAddress,
		DeployedAmount: rec.DeployedAmount,
		ReportedAPYBps: rec.ReportedAPYBps,
		IsActive:       rec.IsActive,
	}
	if !rec.LastReportTime.IsZero() {
		resp.LastReportTime = rec.LastReportTime.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// List returns every child allocation record, active or not.
// GET /api/children
func (h *ChildrenHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.vault.Allocations()
	out := make([]allocationResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toAllocationResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"children": out})
}

// Get returns one child allocation by chain id.
// GET /api/children/{chainID}
func (h *ChildrenHandler) Get(w http.ResponseWriter, r *http.Request) {
	chainID, err := chainIDParam(r, "chainID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	for _, rec := range h.vault.Allocations() {
		if rec.ChainID == chainID {
			writeJSON(w, http.StatusOK, toAllocationResponse(rec))
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown chain")
}

type onboardRequest struct {
	ChainID      uint32 `json:"chain_id"`
	VaultAddress string `json:"vault_address"`
}

// Onboard registers a new child vault. Admin only.
// POST /api/children
func (h *ChildrenHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.vault.OnboardChild(r.Context(), callerIdentity(r), req.ChainID, req.VaultAddress); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"chain_id": req.ChainID})
}

// Deactivate marks a child inactive. Admin only. The record is retained for
// audit history.
// DELETE /api/children/{chainID}
func (h *ChildrenHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	chainID, err := chainIDParam(r, "chainID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	if err := h.vault.DeactivateChild(r.Context(), callerIdentity(r), chainID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chain_id": chainID, "is_active": false})
}

type deployRequest struct {
	Amount int64 `json:"amount"`
}

// Deploy bridges buffer capital to a child vault. Operator only.
// POST /api/children/{chainID}/deploy
func (h *ChildrenHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	chainID, err := chainIDParam(r, "chainID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	var req deployRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.vault.DeployToChild(r.Context(), callerIdentity(r), chainID, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id": chainID,
		"amount":   domain.FormatAmount(req.Amount),
	})
}

// Snapshots returns the stored NAV snapshots for one chain.
// GET /api/children/{chainID}/snapshots
func (h *ChildrenHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snaps == nil {
		writeError(w, http.StatusNotFound, "snapshot store not configured")
		return
	}

	chainID, err := chainIDParam(r, "chainID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	snaps, err := h.snaps.ListByChain(r.Context(), chainID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type snapResponse struct {
		Timestamp string `json:"timestamp"`
		NAV       int64  `json:"nav"`
		Shares    int64  `json:"shares"`
	}
	out := make([]snapResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapResponse{
			Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			NAV:       s.NAV,
			Shares:    s.Shares,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"chain_id": chainID, "snapshots": out})
}
