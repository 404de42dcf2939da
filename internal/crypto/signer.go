package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer attests relayed cross-chain messages with a secp256k1 key. The
// relayer signs the message id digest before handing the envelope to the
// transport; the receiving side can recover the sender address and compare
// it against the trusted remote set.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessageID signs the 32-byte digest encoded in a message id and returns
// a hex-encoded 65-byte signature (r || s || v).
func (s *Signer) SignMessageID(messageID string) (string, error) {
	digest, err := messageIDDigest(messageID)
	if err != nil {
		return "", err
	}

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; wallets expect v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner recovers the address that produced a signature over a message
// id. It returns an error when the signature is malformed or does not decode
// to a valid public key.
func RecoverSigner(messageID, signatureHex string) (common.Address, error) {
	digest, err := messageIDDigest(messageID)
	if err != nil {
		return common.Address{}, err
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d bytes", len(sig))
	}

	// Normalise v back to {0,1} for recovery.
	recSig := make([]byte, 65)
	copy(recSig, sig)
	if recSig[64] >= 27 {
		recSig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, recSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recovering public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyMessageID reports whether signatureHex over messageID was produced by
// the key behind the expected address.
func VerifyMessageID(messageID, signatureHex string, expected common.Address) (bool, error) {
	recovered, err := RecoverSigner(messageID, signatureHex)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}

// messageIDDigest decodes a hex message id into the 32-byte keccak digest it
// encodes.
func messageIDDigest(messageID string) ([]byte, error) {
	digest, err := hex.DecodeString(strings.TrimPrefix(messageID, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid message id hex: %w", err)
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("crypto/signer: expected 32-byte message id, got %d bytes", len(digest))
	}
	return digest, nil
}
