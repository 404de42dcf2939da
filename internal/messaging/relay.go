package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

// RelayEnvelope is the wire format for a message relayed between nodes over
// HTTP. The signature covers the message id, so any envelope field tampering
// invalidates it.
type RelayEnvelope struct {
	OriginChainID uint32                   `json:"origin_chain_id"`
	OriginSender  string                   `json:"origin_sender"`
	Message       domain.CrossChainMessage `json:"message"`
	Signature     string                   `json:"signature,omitempty"`
}

// MessageSigner attests an outbound message by its id. Implemented by
// crypto.Signer. A nil signer sends unsigned envelopes, which only a node
// with signature verification disabled will accept.
type MessageSigner interface {
	SignMessageID(messageID string) (string, error)
}

// HTTPTransport delivers messages to peer nodes by POSTing signed envelopes
// to their inbound message endpoint.
type HTTPTransport struct {
	sourceChain uint32
	sender      string
	signer      MessageSigner
	client      *http.Client
	logger      *slog.Logger

	mu        sync.RWMutex
	endpoints map[uint32]string
}

// NewHTTPTransport creates a transport dispatching on behalf of the given
// source chain and sender address. signer may be nil.
func NewHTTPTransport(sourceChain uint32, sender string, signer MessageSigner, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		sourceChain: sourceChain,
		sender:      sender,
		signer:      signer,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger.With(slog.String("component", "http_transport")),
		endpoints:   make(map[uint32]string),
	}
}

// SetEndpoint registers the base URL of the peer node serving a chain.
func (t *HTTPTransport) SetEndpoint(chainID uint32, baseURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endpoints[chainID] = strings.TrimRight(baseURL, "/")
}

// Name implements Transport.
func (t *HTTPTransport) Name() string { return "http-relay" }

// Dispatch implements Transport. It signs the message id, wraps the message
// in a RelayEnvelope, and POSTs it to the destination node.
func (t *HTTPTransport) Dispatch(ctx context.Context, msg domain.CrossChainMessage) error {
	t.mu.RLock()
	endpoint, ok := t.endpoints[msg.TargetChainID]
	t.mu.RUnlock()
	if !ok || endpoint == "" {
		return fmt.Errorf("http transport: no endpoint for chain %d: %w", msg.TargetChainID, domain.ErrUnknownChain)
	}

	env := RelayEnvelope{
		OriginChainID: t.sourceChain,
		OriginSender:  t.sender,
		Message:       msg,
	}
	if t.signer != nil {
		sig, err := t.signer.SignMessageID(msg.ID())
		if err != nil {
			return fmt.Errorf("http transport: sign %s: %w", msg.ID(), err)
		}
		env.Signature = sig
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("http transport: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http transport: deliver to chain %d: %w", msg.TargetChainID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http transport: chain %d returned status %d: %s",
			msg.TargetChainID, resp.StatusCode, string(excerpt))
	}

	t.logger.DebugContext(ctx, "envelope delivered",
		slog.String("message_id", msg.ID()),
		slog.Uint64("target_chain", uint64(msg.TargetChainID)),
	)
	return nil
}
