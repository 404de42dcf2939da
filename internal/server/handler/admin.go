package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/health"
	"github.com/omnivault/omnivault/internal/vault"
)

// AdminHandler serves the governance and emergency endpoints.
type AdminHandler struct {
	vault       *vault.MotherVault
	coordinator *health.Coordinator // optional
	audit       domain.AuditStore   // optional
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler. coordinator and audit may be nil
// depending on node configuration.
func NewAdminHandler(v *vault.MotherVault, coordinator *health.Coordinator, audit domain.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		vault:       v,
		coordinator: coordinator,
		audit:       audit,
		logger:      logHandler(logger, "admin"),
	}
}

type proposeFeeRequest struct {
	NewFeeBps int64 `json:"new_fee_bps"`
}

// ProposeFee starts the timelock for a management fee change. Admin only.
// POST /api/admin/fee/propose
func (h *AdminHandler) ProposeFee(w http.ResponseWriter, r *http.Request) {
	var req proposeFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.vault.ProposeFeeUpdate(r.Context(), callerIdentity(r), req.NewFeeBps); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"new_fee_bps": req.NewFeeBps})
}

// ExecuteFee applies a proposed fee change once its timelock has elapsed.
// Admin only.
// POST /api/admin/fee/execute
func (h *AdminHandler) ExecuteFee(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.ExecuteFeeUpdate(r.Context(), callerIdentity(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"management_fee_bps": h.vault.State().ManagementFeeBps,
	})
}

type emergencyRequest struct {
	Reason string `json:"reason"`
}

// Pause halts deposits, withdrawals, and deployments across all chains.
// Guardian only. The local ledger pauses first; the instruction then fans out
// to every active child.
// POST /api/admin/pause
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller := callerIdentity(r)
	if h.coordinator != nil {
		if err := h.coordinator.EmergencyPause(r.Context(), caller, req.Reason); err != nil {
			writeDomainError(w, err)
			return
		}
	} else {
		if err := h.vault.EmergencyPause(r.Context(), caller); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// Unpause resumes normal operation. Guardian only.
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(r)
	if h.coordinator != nil {
		if err := h.coordinator.EmergencyUnpause(r.Context(), caller); err != nil {
			writeDomainError(w, err)
			return
		}
	} else {
		if err := h.vault.EmergencyUnpause(r.Context(), caller); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// EmergencyWithdrawAll pauses the system and instructs every active child to
// liquidate and return its full balance. Guardian only.
// POST /api/admin/emergency-withdraw
func (h *AdminHandler) EmergencyWithdrawAll(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		writeError(w, http.StatusNotFound, "health coordinator not running on this node")
		return
	}

	var req emergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.coordinator.EmergencyWithdrawAll(r.Context(), callerIdentity(r), req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":        "withdraw_all_dispatched",
		"confirmations": h.coordinator.Confirmations(),
	})
}

// AuditLog lists entries from the append-only audit log.
// GET /api/admin/audit
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit store not configured")
		return
	}

	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type auditResponse struct {
		ID        int64          `json:"id"`
		Event     string         `json:"event"`
		Detail    map[string]any `json:"detail,omitempty"`
		CreatedAt string         `json:"created_at"`
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": out})
}
