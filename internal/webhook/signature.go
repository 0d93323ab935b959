// Package webhook exposes the HTTP callback endpoint for the workflow engine,
// guarded by an HMAC signature and a replay window over the raw request body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Sign computes the hex HMAC-SHA256 signature of body under secret. Used by
// tests and by callers that need to produce outbound signatures.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex HMAC-SHA256 signature over the exact raw body
// bytes. A "sha256=" prefix is tolerated. Comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if sig == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected))
}

// VerifyTimestamp parses a unix-seconds timestamp header and rejects it when
// it falls outside the replay window around now, in either direction.
func VerifyTimestamp(timestamp string, now time.Time, window time.Duration) error {
	raw := strings.TrimSpace(timestamp)
	if raw == "" {
		return eris.New("webhook: missing timestamp")
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return eris.Wrap(err, "webhook: invalid timestamp")
	}
	delta := now.Sub(time.Unix(secs, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > window {
		return eris.Errorf("webhook: timestamp outside replay window (delta %s)", delta)
	}
	return nil
}
