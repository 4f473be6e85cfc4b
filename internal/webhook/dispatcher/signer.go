package dispatcher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign computes the delivery signature: hex-encoded HMAC-SHA256 of
// "{unixSeconds}.{body}" under the subscription secret. Receivers recompute
// it over the exact delivered bytes and the X-Verify-Timestamp header.
func Sign(secret string, unixSeconds int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(unixSeconds, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares in constant time.
// Exported for receiver-side use and tests.
func VerifySignature(secret string, unixSeconds int64, body []byte, signature string) bool {
	expected := Sign(secret, unixSeconds, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
