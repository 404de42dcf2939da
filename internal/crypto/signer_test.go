package crypto

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/omnivault/omnivault/internal/domain"
)

func testMessageID(t *testing.T) string {
	t.Helper()
	msg := domain.CrossChainMessage{
		Type:          domain.MsgDepositRequest,
		SourceChainID: 1,
		TargetChainID: 10,
		TargetAddress: "0x2000000000000000000000000000000000000002",
		Payload:       []byte(`{"amount":1000000}`),
		Nonce:         7,
		Timestamp:     1_700_000_000,
	}
	return msg.ID()
}

func newKeyHex(t *testing.T) string {
	t.Helper()
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return "0x" + common.Bytes2Hex(ethcrypto.FromECDSA(pk))
}

func TestSignRecoverRoundTrip(t *testing.T) {
	s, err := NewSigner(newKeyHex(t))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	id := testMessageID(t)

	sig, err := s.SignMessageID(id)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+130 {
		t.Fatalf("signature shape: %s", sig)
	}

	recovered, err := RecoverSigner(id, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != s.Address() {
		t.Errorf("recovered %s, want %s", recovered, s.Address())
	}

	ok, err := VerifyMessageID(id, sig, s.Address())
	if err != nil || !ok {
		t.Errorf("verify = %v, %v, want true", ok, err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	s, err := NewSigner(newKeyHex(t))
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewSigner(newKeyHex(t))
	if err != nil {
		t.Fatal(err)
	}
	id := testMessageID(t)

	sig, err := s.SignMessageID(id)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := VerifyMessageID(id, sig, other.Address())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("signature verified against a different address")
	}
}

func TestRecoverRejectsMalformedInput(t *testing.T) {
	id := testMessageID(t)

	if _, err := RecoverSigner(id, "0xdeadbeef"); err == nil {
		t.Error("short signature accepted")
	}
	if _, err := RecoverSigner(id, "not-hex"); err == nil {
		t.Error("non-hex signature accepted")
	}
	if _, err := RecoverSigner("tooshort", strings.Repeat("ab", 65)); err == nil {
		t.Error("malformed message id accepted")
	}
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	if _, err := NewSigner("zz"); err == nil {
		t.Error("invalid key accepted")
	}
}
