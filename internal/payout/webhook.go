package payout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const SignatureHeader = "X-Razorpay-Signature"

var (
	ErrBadSignature = errors.New("invalid webhook signature")
	ErrBadEvent     = errors.New("malformed webhook event")
)

// Event is a payout lifecycle notification.
type Event struct {
	Name          string
	PayoutID      string
	Status        string
	ReferenceID   string
	FailureReason string
}

func (e *Event) Outcome() Outcome { return Classify(e.Status) }

// VerifySignature checks the hex HMAC-SHA256 of body under secret.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrBadSignature)
	}
	if signature == "" {
		return fmt.Errorf("%w: missing %s", ErrBadSignature, SignatureHeader)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the signature VerifySignature expects. Used by tests and
// local tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhookEvent extracts the payout entity from a webhook body. Events
// that are not about payouts yield an Event with an empty PayoutID.
func ParseWebhookEvent(body []byte) (*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrBadEvent
	}
	doc := gjson.ParseBytes(body)
	name := doc.Get("event").String()
	if name == "" {
		return nil, fmt.Errorf("%w: no event name", ErrBadEvent)
	}

	event := &Event{Name: name}
	if !strings.HasPrefix(name, "payout.") {
		return event, nil
	}

	entity := doc.Get("payload.payout.entity")
	if !entity.Exists() {
		return nil, fmt.Errorf("%w: %s has no payout entity", ErrBadEvent, name)
	}
	event.PayoutID = entity.Get("id").String()
	event.Status = entity.Get("status").String()
	event.ReferenceID = entity.Get("reference_id").String()
	event.FailureReason = failureReason(entity)
	if event.PayoutID == "" {
		return nil, fmt.Errorf("%w: %s has no payout id", ErrBadEvent, name)
	}
	if event.Status == "" {
		event.Status = strings.TrimPrefix(name, "payout.")
	}
	return event, nil
}
