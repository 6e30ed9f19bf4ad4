package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the HMAC Paystack computes over each webhook body.
const SignatureHeader = "x-paystack-signature"

// Sign computes the hex HMAC-SHA512 of body under the shared secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the HMAC-SHA512 of the
// exact raw body. The comparison is constant-time; this check is the sole
// trust boundary for inbound webhook traffic.
func VerifySignature(secret, body []byte, signature string) bool {
	expected := hmac.New(sha512.New, secret)
	expected.Write(body)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected.Sum(nil), got)
}
