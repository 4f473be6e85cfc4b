package dispatcher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSignMatchesManualHMAC pins the signature scheme so receiver
// implementations built from the docs stay compatible: hex HMAC-SHA256 over
// "{unixSeconds}.{body}".
func TestSignMatchesManualHMAC(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"verification.completed"}`)
	var ts int64 = 1767225600

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("1767225600." + string(body)))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, Sign(secret, ts, body))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"verification.failed"}`)
	var ts int64 = 1767225600

	sig := Sign(secret, ts, body)

	assert.True(t, VerifySignature(secret, ts, body, sig))
	assert.False(t, VerifySignature("other-secret", ts, body, sig))
	assert.False(t, VerifySignature(secret, ts+1, body, sig))
	assert.False(t, VerifySignature(secret, ts, []byte(`{}`), sig))
}
