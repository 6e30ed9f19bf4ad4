package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	sig := Sign(secret, body)
	assert.True(t, VerifySignature(secret, body, sig))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := Sign([]byte("sk_test_other"), body)

	assert.False(t, VerifySignature([]byte("sk_test_secret"), body, sig))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := []byte("sk_test_secret")
	sig := Sign(secret, []byte(`{"amount":100}`))

	assert.False(t, VerifySignature(secret, []byte(`{"amount":999}`), sig))
}

func TestVerifySignature_MalformedHex(t *testing.T) {
	assert.False(t, VerifySignature([]byte("sk_test_secret"), []byte("{}"), "not-hex"))
	assert.False(t, VerifySignature([]byte("sk_test_secret"), []byte("{}"), ""))
}
