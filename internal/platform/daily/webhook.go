package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Webhook request headers set by Daily.co.
const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

var (
	// ErrMissingSignature is returned when a webhook arrives without signature headers.
	ErrMissingSignature = errors.New("webhook signature missing")
	// ErrInvalidSignature is returned when the signature does not match the body.
	ErrInvalidSignature = errors.New("webhook signature invalid")
	// ErrStaleWebhook is returned when the signed timestamp is outside the allowed skew.
	ErrStaleWebhook = errors.New("webhook timestamp outside allowed window")
)

// WebhookVerifier checks Daily.co webhook signatures.
//
// The signature is the base64 HMAC-SHA256 of "<timestamp>.<body>" keyed with
// the base64-decoded secret. Secrets that are not valid base64 are used as raw bytes.
type WebhookVerifier struct {
	key     []byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewWebhookVerifier creates a verifier. A zero maxSkew disables the timestamp check.
func NewWebhookVerifier(secret string, maxSkew time.Duration) *WebhookVerifier {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		key = []byte(secret)
	}
	return &WebhookVerifier{key: key, maxSkew: maxSkew, now: time.Now}
}

// Sign returns the signature for a timestamp and body.
func (v *WebhookVerifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against timestamp and body.
func (v *WebhookVerifier) Verify(timestamp string, body []byte, signature string) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	if v.maxSkew > 0 {
		secs, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		diff := v.now().Sub(time.Unix(secs, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff > v.maxSkew {
			return ErrStaleWebhook
		}
	}

	expected, err := base64.StdEncoding.DecodeString(v.Sign(timestamp, body))
	if err != nil {
		return ErrInvalidSignature
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(expected, got) {
		return ErrInvalidSignature
	}
	return nil
}
