package epdq

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignDeterministicAndOrderIndependent(t *testing.T) {
	a := url.Values{}
	a.Set("PSPID", "merchant-1")
	a.Set("ORDERID", "order-1")
	a.Set("AMOUNT", "500")

	b := url.Values{}
	b.Set("AMOUNT", "500")
	b.Set("ORDERID", "order-1")
	b.Set("PSPID", "merchant-1")

	assert.Equal(t, Sign(a, "passphrase"), Sign(b, "passphrase"))
}

func TestSignSkipsEmptyAndSignatureFields(t *testing.T) {
	params := url.Values{}
	params.Set("PSPID", "merchant-1")
	params.Set("EMPTY", "")
	params.Set("SHASIGN", "should-not-count")

	bare := url.Values{}
	bare.Set("PSPID", "merchant-1")

	assert.Equal(t, Sign(bare, "pp"), Sign(params, "pp"))
}

func TestSignDependsOnPassphrase(t *testing.T) {
	params := url.Values{}
	params.Set("PSPID", "merchant-1")

	assert.NotEqual(t, Sign(params, "one"), Sign(params, "two"))
}

func TestVerifySignature(t *testing.T) {
	params := url.Values{}
	params.Set("ORDERID", "order-1")
	params.Set("STATUS", "9")

	params.Set("SHASIGN", Sign(params, "passphrase"))
	assert.True(t, VerifySignature(params, "passphrase"))

	// Case-insensitive comparison.
	params.Set("SHASIGN", strings.ToLower(Sign(params, "passphrase")))
	assert.True(t, VerifySignature(params, "passphrase"))

	// Tampered field invalidates the signature.
	params.Set("STATUS", "2")
	assert.False(t, VerifySignature(params, "passphrase"))

	// Missing signature is a failure, not a pass.
	params.Del("SHASIGN")
	assert.False(t, VerifySignature(params, "passphrase"))
}
