package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/omnivault/omnivault/internal/crypto"
)

// hmacMaxSkew bounds how stale a signed admin request may be.
const hmacMaxSkew = 5 * time.Minute

// maxSignedBodyBytes caps how much request body the verifier will buffer.
const maxSignedBodyBytes = 1 << 20

// HMAC requires a valid request signature on every request it wraps. The
// signature covers timestamp, method, path, and body, so a captured admin
// call cannot be replayed later or against another endpoint. A nil auth
// disables the check.
func HMAC(auth *crypto.HMACAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if auth == nil || auth.Secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
			if err != nil {
				deny(w, "unreadable request body")
				return
			}
			// The handler downstream still needs the body.
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := r.Header.Get("X-Vault-Api-Key")
			ts := r.Header.Get("X-Vault-Timestamp")
			sig := r.Header.Get("X-Vault-Signature")
			if key == "" || ts == "" || sig == "" {
				deny(w, "missing request signature")
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(auth.Key)) != 1 {
				deny(w, "invalid request signature")
				return
			}
			if !auth.Verify(r.Method, r.URL.Path, string(body), ts, sig, hmacMaxSkew) {
				deny(w, "invalid request signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
