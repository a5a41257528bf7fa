package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/signature"
)

const testKey = "checksum-key"

func TestPaymentRequestString_FixedOrder(t *testing.T) {
	s := signature.PaymentRequestString(signature.PaymentRequestFields{
		Amount:      1000000,
		CancelURL:   "https://shop.test/cancel",
		Description: "DH123",
		OrderCode:   987654,
		ReturnURL:   "https://shop.test/return",
	})
	assert.Equal(t, "amount=1000000&cancelUrl=https://shop.test/cancel&description=DH123&orderCode=987654&returnUrl=https://shop.test/return", s)
}

func TestSignPaymentRequest_Deterministic(t *testing.T) {
	sig := signature.SignPaymentRequest("key", signature.PaymentRequestFields{
		Amount: 1, CancelURL: "c", Description: "d", OrderCode: 2, ReturnURL: "r",
	})
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, signature.SignPaymentRequest("key", signature.PaymentRequestFields{
		Amount: 1, CancelURL: "c", Description: "d", OrderCode: 2, ReturnURL: "r",
	}))
	assert.NotEqual(t, sig, signature.SignPaymentRequest("key", signature.PaymentRequestFields{
		Amount: 1, CancelURL: "c", Description: "d", OrderCode: 3, ReturnURL: "r",
	}))
}

func TestCanonicalize(t *testing.T) {
	data, err := signature.Decode([]byte(`{
		"orderCode": 123,
		"amount": 3000,
		"description": "VQRIO123",
		"reference": null,
		"paid": true,
		"meta": {"z": 1, "a": {"y": "<b>", "b": [3, 1]}},
		"list": [{"k2": 2, "k1": 1}, "x"]
	}`))
	require.NoError(t, err)

	got := signature.Canonicalize(data)
	assert.Equal(t,
		`amount=3000&description=VQRIO123&list=[{"k1":1,"k2":2},"x"]&meta={"a":{"b":[3,1],"y":"<b>"},"z":1}&orderCode=123&paid=true&reference=`,
		got)
}

func TestCanonicalize_NumberLiteralKept(t *testing.T) {
	data, err := signature.Decode([]byte(`{"amount": 10.50, "orderCode": 12345678901234}`))
	require.NoError(t, err)
	assert.Equal(t, "amount=10.50&orderCode=12345678901234", signature.Canonicalize(data))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	data, err := signature.Decode([]byte(`{"orderCode": 42, "amount": 500000, "code": "00", "status": "PAID"}`))
	require.NoError(t, err)

	sig := signature.Sign(testKey, data)
	assert.True(t, signature.Verify(testKey, data, sig))
	assert.False(t, signature.Verify("other-key", data, sig))
}

func TestVerify_TamperedSignature(t *testing.T) {
	data, err := signature.Decode([]byte(`{"orderCode": 42, "amount": 500000}`))
	require.NoError(t, err)
	sig := []byte(signature.Sign(testKey, data))

	for i := range sig {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		if tampered[i] == 'a' {
			tampered[i] = 'b'
		} else {
			tampered[i] = 'a'
		}
		assert.False(t, signature.Verify(testKey, data, string(tampered)), "byte %d", i)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	data, err := signature.Decode([]byte(`{"orderCode": 42, "amount": 500000}`))
	require.NoError(t, err)
	sig := signature.Sign(testKey, data)

	tampered, err := signature.Decode([]byte(`{"orderCode": 42, "amount": 500001}`))
	require.NoError(t, err)
	assert.False(t, signature.Verify(testKey, tampered, sig))
}

func TestSign_KeyOrderIndependent(t *testing.T) {
	a, err := signature.Decode([]byte(`{"b": 1, "a": {"y": 2, "x": [{"q": 1, "p": 2}]}}`))
	require.NoError(t, err)
	b, err := signature.Decode([]byte(`{"a": {"x": [{"p": 2, "q": 1}], "y": 2}, "b": 1}`))
	require.NoError(t, err)

	assert.Equal(t, signature.Sign(testKey, a), signature.Sign(testKey, b))
}

func TestSign_ArrayOrderSensitive(t *testing.T) {
	a, err := signature.Decode([]byte(`{"items": [1, 2, 3]}`))
	require.NoError(t, err)
	b, err := signature.Decode([]byte(`{"items": [3, 2, 1]}`))
	require.NoError(t, err)

	assert.NotEqual(t, signature.Sign(testKey, a), signature.Sign(testKey, b))
}

func TestDecode_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"PAID"`, `null`, `{"orderCode":`} {
		_, err := signature.Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestCanonicalize_LineSeparatorsMatchJSONStringify(t *testing.T) {
	data, err := signature.Decode([]byte(`{"meta":{"note":"a\u2028b\u2029c","path":"x\\u2028y"},"orderCode":1}`))
	require.NoError(t, err)

	// JSON.stringify writes U+2028/U+2029 raw and keeps an escaped backslash escaped
	assert.Equal(t, "meta={\"note\":\"a\u2028b\u2029c\",\"path\":\"x\\\\u2028y\"}&orderCode=1",
		signature.Canonicalize(data))
}
