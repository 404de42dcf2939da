package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omnivault/omnivault/internal/crypto"
	"github.com/omnivault/omnivault/internal/domain"
	"github.com/omnivault/omnivault/internal/messaging"
)

// MessagesHandler is the inbound side of the HTTP relay transport: peer nodes
// POST signed envelopes here and the handler feeds them to the messenger.
type MessagesHandler struct {
	messenger *messaging.Messenger
	trusted   map[common.Address]bool
	logger    *slog.Logger
}

// NewMessagesHandler creates the inbound message handler. trustedSigners is
// the relayer address allowlist; when empty, signature verification is
// disabled and any well-formed envelope is accepted.
func NewMessagesHandler(m *messaging.Messenger, trustedSigners []string, logger *slog.Logger) *MessagesHandler {
	trusted := make(map[common.Address]bool, len(trustedSigners))
	for _, addr := range trustedSigners {
		trusted[common.HexToAddress(addr)] = true
	}
	if len(trusted) == 0 {
		logger.Warn("messages: no trusted signers configured, envelope signatures are not verified")
	}
	return &MessagesHandler{
		messenger: m,
		trusted:   trusted,
		logger:    logHandler(logger, "messages"),
	}
}

// Receive accepts one relayed envelope, verifies its attestation, and hands
// the message to the messenger. Duplicate deliveries return 202 like first
// deliveries; the messenger drops them internally.
// POST /api/messages
func (h *MessagesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var env messaging.RelayEnvelope
	if err := decodeBody(r, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(h.trusted) > 0 {
		if strings.TrimSpace(env.Signature) == "" {
			writeError(w, http.StatusForbidden, "envelope signature required")
			return
		}
		signer, err := crypto.RecoverSigner(env.Message.ID(), env.Signature)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid envelope signature: "+err.Error())
			return
		}
		if !h.trusted[signer] {
			h.logger.Warn("envelope from untrusted relayer",
				slog.String("signer", signer.Hex()),
				slog.Uint64("origin_chain", uint64(env.OriginChainID)),
			)
			writeError(w, http.StatusForbidden, "untrusted relayer signature")
			return
		}
	}

	err := h.messenger.Handle(r.Context(), env.OriginChainID, env.OriginSender, env.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, domain.ErrUntrustedOrigin), errors.Is(err, domain.ErrUntrustedSender):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnknownMessageType), errors.Is(err, domain.ErrNoHandler):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeDomainError(w, err)
	}
}
