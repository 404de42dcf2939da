package handler

import (
	"log/slog"
	"net/http"

	"github.com/omnivault/omnivault/internal/rebalance"
	"github.com/omnivault/omnivault/internal/vault"
)

// RebalanceHandler serves the rebalancing preview and execution endpoints.
type RebalanceHandler struct {
	runner *rebalance.Runner
	vault  *vault.MotherVault
	logger *slog.Logger
}

// NewRebalanceHandler creates a RebalanceHandler.
func NewRebalanceHandler(runner *rebalance.Runner, v *vault.MotherVault, logger *slog.Logger) *RebalanceHandler {
	return &RebalanceHandler{
		runner: runner,
		vault:  v,
		logger: logHandler(logger, "rebalance"),
	}
}

// decisionResponse is the JSON view of one rebalance evaluation.
type decisionResponse struct {
	SourceChainID      uint32 `json:"source_chain_id"`
	TargetChainID      uint32 `json:"target_chain_id"`
	Amount             int64  `json:"amount"`
	APYDifferentialBps int64  `json:"apy_differential_bps"`
	EstimatedCostUSD   int64  `json:"estimated_cost_usd"`
	ShouldExecute      bool   `json:"should_execute"`
	Reason             string `json:"reason"`
}

// Preview evaluates the current rebalance decision without executing it.
// GET /api/rebalance/preview
func (h *RebalanceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	d := h.runner.Preview(r.Context())
	writeJSON(w, http.StatusOK, decisionResponse{
		SourceChainID:      d.SourceChainID,
		TargetChainID:      d.TargetChainID,
		Amount:             d.Amount,
		APYDifferentialBps: d.APYDifferentialBps,
		EstimatedCostUSD:   d.EstimatedCostUSD,
		ShouldExecute:      d.ShouldExecute,
		Reason:             d.Reason,
	})
}

// Execute evaluates and, if the decision passes all gates, executes it on
// behalf of the calling operator.
// POST /api/rebalance/execute
func (h *RebalanceHandler) Execute(w http.ResponseWriter, r *http.Request) {
	d := h.runner.Preview(r.Context())
	if !d.ShouldExecute {
		writeJSON(w, http.StatusOK, map[string]any{
			"executed": false,
			"reason":   d.Reason,
		})
		return
	}

	if err := h.vault.ExecuteRebalance(r.Context(), callerIdentity(r), d); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rebalance executed via api",
		slog.Uint64("source_chain", uint64(d.SourceChainID)),
		slog.Uint64("target_chain", uint64(d.TargetChainID)),
		slog.Int64("amount", d.Amount),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"executed":     true,
		"source_chain": d.SourceChainID,
		"target_chain": d.TargetChainID,
		"amount":       d.Amount,
	})
}

type emergencyRebalanceRequest struct {
	SourceChainID uint32 `json:"source_chain_id"`
	TargetChainID uint32 `json:"target_chain_id"`
	Amount        int64  `json:"amount"`
}

// EmergencyExecute moves capital between chains bypassing the differential,
// cooldown, and cost gates. Guardian only.
// POST /api/rebalance/emergency
func (h *RebalanceHandler) EmergencyExecute(w http.ResponseWriter, r *http.Request) {
	var req emergencyRebalanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.vault.ExecuteEmergencyRebalance(r.Context(), callerIdentity(r),
		req.SourceChainID, req.TargetChainID, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executed":     true,
		"source_chain": req.SourceChainID,
		"target_chain": req.TargetChainID,
		"amount":       req.Amount,
	})
}
