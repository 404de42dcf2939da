package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/omnivault/omnivault/internal/domain"
)

// Transport dispatches a constructed message toward its destination chain.
// Send is the only call site allowed to invoke Dispatch.
type Transport interface {
	Name() string
	Dispatch(ctx context.Context, msg domain.CrossChainMessage) error
}

// InboundSink receives verified raw deliveries on the destination side. The
// Messenger is the canonical implementation.
type InboundSink interface {
	Handle(ctx context.Context, originChain uint32, originSender string, msg domain.CrossChainMessage) error
}

// ---------------------------------------------------------------------------
// In-memory network: same-process delivery for the sim mode and tests.
// ---------------------------------------------------------------------------

type endpoint struct {
	sink InboundSink
}

// InMemNetwork routes messages between in-process messengers. Delivery is
// synchronous and per-destination FIFO; cross-chain ordering is intentionally
// unspecified, matching the production transports.
type InMemNetwork struct {
	mu        sync.RWMutex
	endpoints map[uint32]*endpoint
}

// NewInMemNetwork creates an empty network.
func NewInMemNetwork() *InMemNetwork {
	return &InMemNetwork{endpoints: make(map[uint32]*endpoint)}
}

// Attach registers the inbound sink for a chain.
func (n *InMemNetwork) Attach(chainID uint32, sink InboundSink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints[chainID] = &endpoint{sink: sink}
}

// TransportFor returns a Transport that delivers messages on behalf of the
// given source chain and sender address.
func (n *InMemNetwork) TransportFor(sourceChain uint32, senderAddr string) Transport {
	return &inmemTransport{net: n, sourceChain: sourceChain, sender: senderAddr}
}

type inmemTransport struct {
	net         *InMemNetwork
	sourceChain uint32
	sender      string
}

func (t *inmemTransport) Name() string { return "inmem" }

func (t *inmemTransport) Dispatch(ctx context.Context, msg domain.CrossChainMessage) error {
	t.net.mu.RLock()
	ep, ok := t.net.endpoints[msg.TargetChainID]
	t.net.mu.RUnlock()
	if !ok {
		return fmt.Errorf("inmem transport: chain %d: %w", msg.TargetChainID, domain.ErrUnknownChain)
	}
	return ep.sink.Handle(ctx, t.sourceChain, t.sender, msg)
}
