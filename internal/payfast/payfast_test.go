package payfast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickify/internal/models"
)

func newTestClient() *Client {
	return New(Config{
		ProcessURL:  "https://sandbox.payfast.co.za/eng/process",
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  "secret phrase",
		ReturnURL:   "https://shop.test/return",
		CancelURL:   "https://shop.test/cancel",
		NotifyURL:   "https://shop.test/notify",
	})
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "123.45", Amount(12345))
	assert.Equal(t, "0.05", Amount(5))
	assert.Equal(t, "10.00", Amount(1000))
	assert.Equal(t, "0.00", Amount(0))
}

func TestSignDeterministic(t *testing.T) {
	c := newTestClient()

	fields := map[string]string{
		"m_payment_id": "order-1",
		"amount":       "100.00",
		"merchant_id":  "10000100",
	}

	sig1 := c.Sign(fields)
	sig2 := c.Sign(fields)
	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 32)

	// any field change must change the signature
	fields["amount"] = "100.01"
	assert.NotEqual(t, sig1, c.Sign(fields))
}

func TestSignPassphraseMatters(t *testing.T) {
	fields := map[string]string{"m_payment_id": "order-1"}

	withPass := newTestClient().Sign(fields)
	noPass := New(Config{}).Sign(fields)
	assert.NotEqual(t, withPass, noPass)
}

func TestBuildRedirectRoundTrip(t *testing.T) {
	c := newTestClient()

	r := c.BuildRedirect("order-42", 250000)
	assert.True(t, strings.HasPrefix(r.URL, "https://sandbox.payfast.co.za/eng/process?"))
	assert.Equal(t, "2500.00", r.Fields["amount"])
	assert.Equal(t, "order-42", r.Fields["m_payment_id"])
	assert.NotEmpty(t, r.Fields["signature"])

	// the outbound signature must verify under the inbound algorithm
	payload := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		if k != "signature" {
			payload[k] = v
		}
	}
	assert.Equal(t, r.Fields["signature"], c.Sign(payload))
}

func TestVerifyTamperedPayload(t *testing.T) {
	c := newTestClient()

	fields := map[string]string{
		"m_payment_id":   "order-7",
		"payment_status": StatusComplete,
		"amount_gross":   "500.00",
		"merchant_id":    "10000100",
		"pf_payment_id":  "1089250",
	}
	fields["signature"] = c.Sign(fields)

	n, err := ParseNotification(fields)
	require.NoError(t, err)
	require.NoError(t, c.Verify(n))

	// tampering with the amount invalidates the signature
	tampered := make(map[string]string, len(fields))
	for k, v := range fields {
		tampered[k] = v
	}
	tampered["amount_gross"] = "0.01"

	n2, err := ParseNotification(tampered)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Verify(n2), models.ErrInvalidSignature)
}

func TestParseNotificationRequiredFields(t *testing.T) {
	_, err := ParseNotification(map[string]string{
		"payment_status": StatusComplete,
		"signature":      "abc",
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ParseNotification(map[string]string{
		"m_payment_id":   "order-1",
		"payment_status": StatusFailed,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}
