package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature reports whether headerSignature is a valid
// HMAC-SHA256 of body under secret, in GitHub's
// "sha256=<hex>" header format. It is a pure function of its inputs:
// any malformed header, and an empty secret, yield false rather than
// an error. The comparison is constant-time.
func VerifySignature(body []byte, headerSignature, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(headerSignature, signaturePrefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(headerSignature, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
