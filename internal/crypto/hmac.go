package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the shared secret used to authenticate admin API requests.
// Signatures cover the timestamp, HTTP method, path, and body, so a captured
// request cannot be replayed against another endpoint.
type HMACAuth struct {
	Key    string // API key identifier
	Secret string // shared secret
}

// Headers returns the HTTP headers for an authenticated admin request.
// The signature is HMAC-SHA256(secret, timestamp+method+path+body) encoded
// as base64.
//
// Returned header keys:
//   - X-Vault-Api-Key
//   - X-Vault-Timestamp
//   - X-Vault-Signature
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	return h.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (h *HMACAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	sig := hmacSHA256Base64([]byte(h.Secret), ts+method+path+body)

	return map[string]string{
		"X-Vault-Api-Key":   h.Key,
		"X-Vault-Timestamp": ts,
		"X-Vault-Signature": sig,
	}
}

// Verify checks a signature produced by Headers. maxSkew bounds how far the
// supplied timestamp may drift from now; pass 0 to skip the freshness check.
func (h *HMACAuth) Verify(method, path, body, timestamp, signature string, maxSkew time.Duration) bool {
	if maxSkew > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		drift := time.Since(time.Unix(ts, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > maxSkew {
			return false
		}
	}

	expected := hmacSHA256Base64([]byte(h.Secret), timestamp+method+path+body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
