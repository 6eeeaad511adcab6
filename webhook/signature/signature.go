package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// Header is the request header carrying the GitHub HMAC-SHA256 signature
	Header = "X-Hub-Signature-256"

	// Prefix is the algorithm tag every accepted signature starts with
	Prefix = "sha256="
)

// Sign returns the header value for payload: sha256=<lowercase hex HMAC-SHA256>
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the HMAC-SHA256 of payload keyed with secret.
// The comparison runs in constant time; neither the secret nor the computed
// digest leave this function.
func Verify(payload, secret []byte, header string) bool {
	if header == "" || !strings.HasPrefix(header, Prefix) {
		return false
	}

	expected := Sign(payload, secret)

	return hmac.Equal([]byte(expected), []byte(header))
}
