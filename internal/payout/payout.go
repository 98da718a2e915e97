// Package payout talks to the external payout processor.
package payout

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Outcome is the ledger-relevant reading of a processor status.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Classify maps a processor payout status to an Outcome. Unknown statuses
// are treated as pending so they never release or finalize a reservation.
func Classify(status string) Outcome {
	switch strings.ToLower(status) {
	case "processed":
		return OutcomeCompleted
	case "failed", "cancelled", "reversed", "rejected":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

type PayoutRequest struct {
	FundAccountID  string
	Amount         int64
	IdempotencyKey string
	// ReferenceID is echoed back in webhooks.
	ReferenceID string
}

type Payout struct {
	ID            string
	Status        string
	ReferenceID   string
	FailureReason string
}

func (p *Payout) Outcome() Outcome { return Classify(p.Status) }

type Processor interface {
	CreateFundAccount(ctx context.Context, contactID, vpaAddress string) (string, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
}

// Error is returned by Processor implementations. Definitive errors mean the
// processor certainly did not move money; anything else may have.
type Error struct {
	Op         string
	StatusCode int
	Definitive bool
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("payout %s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("payout %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsDefinitive reports whether err is a processor error that is known not to
// have created a payout.
func IsDefinitive(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Definitive
}
