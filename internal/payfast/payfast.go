package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tickify/internal/models"
)

// Provider is the provider name stored on payment records
const Provider = "payfast"

// Callback payment statuses sent by the gateway
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Config carries the merchant credentials and redirect URLs
type Config struct {
	ProcessURL  string
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// Client builds outbound payment requests and verifies inbound
// notifications. The same signature function covers both directions.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// MerchantID returns the configured gateway merchant identity
func (c *Client) MerchantID() string {
	return c.cfg.MerchantID
}

// Amount renders integer cents as the exact 2-decimal string the
// gateway expects
func Amount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Sign computes the gateway signature over fields: keys sorted,
// key=url-encoded-value joined by '&', optional passphrase appended,
// MD5 hex digest. The signature field itself must not be present.
func (c *Client) Sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+"="+escape(fields[k]))
	}
	if c.cfg.Passphrase != "" {
		parts = append(parts, "passphrase="+escape(c.cfg.Passphrase))
	}

	sum := md5.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

// Redirect holds the outbound payment request
type Redirect struct {
	URL    string
	Fields map[string]string
}

// BuildRedirect assembles the signed payment payload for an order
func (c *Client) BuildRedirect(orderID string, amountCents int64) Redirect {
	fields := map[string]string{
		"merchant_id":  c.cfg.MerchantID,
		"merchant_key": c.cfg.MerchantKey,
		"return_url":   c.cfg.ReturnURL,
		"cancel_url":   c.cfg.CancelURL,
		"notify_url":   c.cfg.NotifyURL,
		"amount":       Amount(amountCents),
		"item_name":    fmt.Sprintf("Tickify Order %s", orderID),
		"m_payment_id": orderID,
	}
	fields["signature"] = c.Sign(fields)

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}

	return Redirect{
		URL:    c.cfg.ProcessURL + "?" + q.Encode(),
		Fields: fields,
	}
}

// Notification is the parsed inbound server-to-server callback
type Notification struct {
	MerchantReference string // m_payment_id, the correlation id
	PaymentStatus     string
	AmountGross       string
	MerchantID        string
	ProviderReference string // pf_payment_id
	Signature         string
	Raw               map[string]string
}

// ParseNotification validates required correlation fields and extracts
// the callback payload
func ParseNotification(fields map[string]string) (*Notification, error) {
	n := &Notification{
		MerchantReference: fields["m_payment_id"],
		PaymentStatus:     fields["payment_status"],
		AmountGross:       fields["amount_gross"],
		MerchantID:        fields["merchant_id"],
		ProviderReference: fields["pf_payment_id"],
		Signature:         fields["signature"],
		Raw:               fields,
	}
	if n.MerchantReference == "" || n.PaymentStatus == "" || n.Signature == "" {
		return nil, fmt.Errorf("%w: missing m_payment_id, payment_status or signature", models.ErrValidation)
	}
	return n, nil
}

// Verify recomputes the signature over the payload excluding the
// signature field and rejects on mismatch. This is the primary control
// against forged payment confirmations.
func (c *Client) Verify(n *Notification) error {
	payload := make(map[string]string, len(n.Raw))
	for k, v := range n.Raw {
		if k == "signature" {
			continue
		}
		payload[k] = v
	}

	if c.Sign(payload) != n.Signature {
		return models.ErrInvalidSignature
	}
	return nil
}

// escape matches the gateway's url-encoding convention with spaces as '+'
func escape(s string) string {
	return url.QueryEscape(s)
}
