package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/vault"
)

// VaultHandler serves the home ledger's share accounting endpoints.
type VaultHandler struct {
	vault  *vault.MotherVault
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(v *vault.MotherVault, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vault:  v,
		logger: logHandler(logger, "vault"),
	}
}

// stateResponse is the JSON view of the home ledger state.
type stateResponse struct {
	TotalShares      int64  `json:"total_shares"`
	Buffer           int64  `json:"buffer"`
	TotalDeployed    int64  `json:"total_deployed"`
	TotalAssets      int64  `json:"total_assets"`
	SharePrice       int64  `json:"share_price"`
	DepositCap       int64  `json:"deposit_cap"`
	ManagementFeeBps int64  `json:"management_fee_bps"`
	FeeSink          string `json:"fee_sink,omitempty"`
	Deployable       int64  `json:"deployable"`
	Paused           bool   `json:"paused"`

	PendingFee    *pendingFeeResponse `json:"pending_fee,omitempty"`
	LastRebalance *time.Time          `json:"last_rebalance,omitempty"`
}

type pendingFeeResponse struct {
	NewFeeBps  int64     `json:"new_fee_bps"`
	ProposedAt time.Time `json:"proposed_at"`
}

// GetState returns the current home ledger accounting state.
// GET /api/vault/state
func (h *VaultHandler) GetState(w http.ResponseWriter, r *http.Request) {
	s := h.vault.State()

	resp := stateResponse{
		TotalShares:      s.TotalShares,
		Buffer:           s.Buffer,
		TotalDeployed:    s.TotalDeployed,
		TotalAssets:      s.TotalAssets(),
		SharePrice:       s.SharePrice(),
		DepositCap:       s.DepositCap,
		ManagementFeeBps: s.ManagementFeeBps,
		FeeSink:          s.FeeSink,
		Deployable:       h.vault.GetDeployableAmount(),
		Paused:           s.Paused,
	}
	if s.PendingFeeUpdate != nil && !s.PendingFeeUpdate.Executed {
		resp.PendingFee = &pendingFeeResponse{
			NewFeeBps:  s.PendingFeeUpdate.NewFeeBps,
			ProposedAt: s.PendingFeeUpdate.ProposedAt,
		}
	}
	if !s.LastRebalance.IsZero() {
		t := s.LastRebalance
		resp.LastRebalance = &t
	}

	writeJSON(w, http.StatusOK, resp)
}

type depositRequest struct {
	Amount    int64  `json:"amount"`
	Depositor string `json:"depositor"`
}

// Deposit credits assets into the buffer and mints shares at the current
// share price.
// POST /api/vault/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	shares, err := h.vault.Deposit(r.Context(), req.Amount, req.Depositor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shares_minted": shares,
		"amount":        domain.FormatAmount(req.Amount),
	})
}

type withdrawRequest struct {
	Shares    int64  `json:"shares"`
	Recipient string `json:"recipient"`
}

// Withdraw burns shares against the local buffer.
// POST /api/vault/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	amount, err := h.vault.Withdraw(r.Context(), req.Shares, req.Recipient)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"amount":        amount,
		"shares_burned": req.Shares,
	})
}
