package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// FingerprintToken returns the base64url SHA-256 of token (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// maskPrefixLen characters are kept by MaskSecret, and only for secrets at
// least twice as long.
const maskPrefixLen = 6

// MaskSecret identifies a secret in logs without revealing it: a short
// fingerprint, preceded by the first few characters when the secret is long
// enough to spare them.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	var prefix string
	if len(secret) >= 2*maskPrefixLen {
		prefix = secret[:maskPrefixLen]
	}
	return prefix + "…" + FingerprintToken(secret)[:8]
}
