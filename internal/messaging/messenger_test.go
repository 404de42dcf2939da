package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

const (
	localChain  uint32 = 1
	remoteChain uint32 = 10

	localAddr  = "0x1000000000000000000000000000000000000001"
	remoteAddr = "0x2000000000000000000000000000000000000002"
)

// captureTransport records dispatched messages.
type captureTransport struct {
	dispatched []domain.CrossChainMessage
	fail       error
}

func (t *captureTransport) Name() string { return "capture" }

func (t *captureTransport) Dispatch(_ context.Context, msg domain.CrossChainMessage) error {
	if t.fail != nil {
		return t.fail
	}
	t.dispatched = append(t.dispatched, msg)
	return nil
}

// memFailedOps collects failure records in memory.
type memFailedOps struct {
	records []domain.FailedOperationRecord
}

func (s *memFailedOps) Append(_ context.Context, rec domain.FailedOperationRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *memFailedOps) List(context.Context, domain.ListOpts) ([]domain.FailedOperationRecord, error) {
	return s.records, nil
}

func (s *memFailedOps) ListBefore(context.Context, time.Time) ([]domain.FailedOperationRecord, error) {
	return nil, nil
}

func newTestMessenger(t *testing.T) (*Messenger, *captureTransport, *memFailedOps) {
	t.Helper()
	transport := &captureTransport{}
	failedOps := &memFailedOps{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(localChain, localAddr, transport, NewMemStore(), failedOps, logger)
	if err := m.AddRemote(Remote{ChainID: remoteChain, Address: remoteAddr}); err != nil {
		t.Fatalf("add remote: %v", err)
	}
	return m, transport, failedOps
}

func inbound(nonce uint64) domain.CrossChainMessage {
	body, _ := domain.MarshalPayload(domain.YieldReportPayload{APYBps: 500, TotalValue: 1_000 * domain.AmountScale})
	return domain.CrossChainMessage{
		Type:          domain.MsgYieldReport,
		SourceChainID: remoteChain,
		TargetChainID: localChain,
		TargetAddress: localAddr,
		Payload:       body,
		Nonce:         nonce,
		Timestamp:     1_700_000_000,
	}
}

func TestSendStampsNonceAndDispatches(t *testing.T) {
	m, transport, _ := newTestMessenger(t)
	ctx := context.Background()

	first, err := m.Send(ctx, domain.MsgDepositRequest, remoteChain, domain.DepositRequestPayload{Amount: domain.AmountScale})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := m.Send(ctx, domain.MsgDepositRequest, remoteChain, domain.DepositRequestPayload{Amount: domain.AmountScale})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if first.Nonce != 1 || second.Nonce != 2 {
		t.Errorf("nonces = %d, %d, want 1, 2", first.Nonce, second.Nonce)
	}
	if first.SourceChainID != localChain || first.TargetAddress != remoteAddr {
		t.Errorf("message addressing wrong: %+v", first)
	}
	if len(transport.dispatched) != 2 {
		t.Errorf("dispatched %d messages, want 2", len(transport.dispatched))
	}
	if first.ID() == second.ID() {
		t.Error("distinct nonces must yield distinct message ids")
	}
}

func TestSendToUnknownChainFails(t *testing.T) {
	m, transport, _ := newTestMessenger(t)
	_, err := m.Send(context.Background(), domain.MsgDepositRequest, 999, domain.DepositRequestPayload{Amount: 1})
	if !errors.Is(err, domain.ErrUnknownChain) {
		t.Errorf("got %v, want ErrUnknownChain", err)
	}
	if len(transport.dispatched) != 0 {
		t.Error("nothing should have been dispatched")
	}
}

func TestSendTransportFailure(t *testing.T) {
	m, transport, _ := newTestMessenger(t)
	transport.fail = errors.New("connection refused")
	if _, err := m.Send(context.Background(), domain.MsgDepositRequest, remoteChain, domain.DepositRequestPayload{Amount: 1}); err == nil {
		t.Fatal("expected dispatch error")
	}
}

func TestAddRemoteRejectsBadAddress(t *testing.T) {
	m, _, _ := newTestMessenger(t)
	if err := m.AddRemote(Remote{ChainID: 5, Address: "bogus"}); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("got %v, want ErrInvalidAddress", err)
	}
}

func TestHandleVerificationOrder(t *testing.T) {
	m, _, _ := newTestMessenger(t)
	m.RegisterHandler(domain.MsgYieldReport, func(context.Context, domain.CrossChainMessage) error { return nil })
	ctx := context.Background()

	tests := []struct {
		name    string
		origin  uint32
		sender  string
		msg     domain.CrossChainMessage
		wantErr error
	}{
		{"untrusted origin", 999, remoteAddr, inbound(1), domain.ErrUntrustedOrigin},
		{"wrong sender", remoteChain, localAddr, inbound(1), domain.ErrUntrustedSender},
		{"invalid type", remoteChain, remoteAddr, domain.CrossChainMessage{Type: 99}, domain.ErrUnknownMessageType},
		{"no handler", remoteChain, remoteAddr, domain.CrossChainMessage{Type: domain.MsgRebalanceCommand}, domain.ErrNoHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Handle(ctx, tt.origin, tt.sender, tt.msg); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleDuplicateIsSilentNoOp(t *testing.T) {
	m, _, _ := newTestMessenger(t)
	calls := 0
	m.RegisterHandler(domain.MsgYieldReport, func(context.Context, domain.CrossChainMessage) error {
		calls++
		return nil
	})
	ctx := context.Background()
	msg := inbound(7)

	if err := m.Handle(ctx, remoteChain, remoteAddr, msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := m.Handle(ctx, remoteChain, remoteAddr, msg); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestHandleFailureRecordedNotReplayed(t *testing.T) {
	m, _, failedOps := newTestMessenger(t)
	calls := 0
	handlerErr := errors.New("downstream unavailable")
	m.RegisterHandler(domain.MsgYieldReport, func(context.Context, domain.CrossChainMessage) error {
		calls++
		return handlerErr
	})
	ctx := context.Background()
	msg := inbound(3)

	if err := m.Handle(ctx, remoteChain, remoteAddr, msg); !errors.Is(err, handlerErr) {
		t.Fatalf("got %v, want handler error", err)
	}
	if len(failedOps.records) != 1 {
		t.Fatalf("failure records = %d, want 1", len(failedOps.records))
	}
	rec := failedOps.records[0]
	if rec.Reference != msg.ID() {
		t.Errorf("record reference = %s, want message id %s", rec.Reference, msg.ID())
	}
	if rec.OperationType != "message_yield_report" {
		t.Errorf("operation type = %s", rec.OperationType)
	}

	// The message was marked processed before the handler ran. Redelivery is a
	// duplicate and must not re-run the failing handler.
	if err := m.Handle(ctx, remoteChain, remoteAddr, msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestInMemNetworkRoundTrip(t *testing.T) {
	net := NewInMemNetwork()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	home := New(localChain, localAddr, net.TransportFor(localChain, localAddr), NewMemStore(), nil, logger)
	peer := New(remoteChain, remoteAddr, net.TransportFor(remoteChain, remoteAddr), NewMemStore(), nil, logger)
	if err := home.AddRemote(Remote{ChainID: remoteChain, Address: remoteAddr}); err != nil {
		t.Fatal(err)
	}
	if err := peer.AddRemote(Remote{ChainID: localChain, Address: localAddr}); err != nil {
		t.Fatal(err)
	}

	var got domain.CrossChainMessage
	peer.RegisterHandler(domain.MsgDepositRequest, func(_ context.Context, msg domain.CrossChainMessage) error {
		got = msg
		return nil
	})
	net.Attach(localChain, home)
	net.Attach(remoteChain, peer)

	sent, err := home.Send(context.Background(), domain.MsgDepositRequest, remoteChain, domain.DepositRequestPayload{Amount: 42})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ID() != sent.ID() {
		t.Errorf("delivered id %s, want %s", got.ID(), sent.ID())
	}
	p, err := DecodeDepositRequest(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Amount != 42 {
		t.Errorf("amount = %d, want 42", p.Amount)
	}
}
