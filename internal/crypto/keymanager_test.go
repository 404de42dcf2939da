package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptKey(blob, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("decrypted %s, want %s", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestEncryptKeyValidation(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Error("empty password accepted")
	}
	if _, err := EncryptKey("zz", "pw"); err == nil {
		t.Error("non-hex key accepted")
	}
	if _, err := EncryptKey(strings.Repeat("ab", 16), "pw"); err == nil {
		t.Error("short key accepted")
	}
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relayer.key.json")
	blob, err := EncryptKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Raw key wins even when a file is configured.
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: path, KeyPassword: "ignored"})
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("loaded %s, want %s", got, testKeyHex)
	}

	// Falls back to the encrypted file.
	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("loaded %s, want %s", got, testKeyHex)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Error("empty config accepted")
	}
	if _, err := LoadKey(KeyConfig{RawPrivateKey: "not-hex"}); err == nil {
		t.Error("invalid raw key accepted")
	}
}
