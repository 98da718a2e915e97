package reward

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Entry is one redemption attempt. Points are reserved on the user before the
// entry exists; a FAILED entry has had its reservation released.
type Entry struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	PointsRewarded int64      `json:"pointsRewarded"`
	Amount         int64      `json:"amount"`
	VPAAddress     string     `json:"vpaAddress"`
	RewardType     string     `json:"rewardType"`
	Status         Status     `json:"status"`
	IdempotencyKey string     `json:"-"`
	// FundAccountID is pinned before the first payout call and reused by
	// every retry. A nil value means no payout was ever requested.
	FundAccountID  *string    `json:"-"`
	PayoutID       *string    `json:"payoutId,omitempty"`
	FailureReason  *string    `json:"failureReason,omitempty"`
	RewardedAt     time.Time  `json:"rewardedAt"`
	SettledAt      *time.Time `json:"settledAt,omitempty"`
}

// Destination maps a VPA address to the processor's fund account.
type Destination struct {
	FundAccountID string    `json:"fundAccountId"`
	ContactID     string    `json:"contactId"`
	VPAAddress    string    `json:"vpaAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

type RedeemRequest struct {
	PointsRewarded int64  `json:"pointsRewarded"`
	Amount         int64  `json:"amount"`
	VPAAddress     string `json:"vpaAddress"`
	RewardType     string `json:"rewardType"`
}
