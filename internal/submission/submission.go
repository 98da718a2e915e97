package submission

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Source identifies who drove a settlement.
type Source string

const (
	SourceManual Source = "manual"
	SourceAuto   Source = "auto"
)

const (
	MaxImages = 5
	MaxVideos = 2
)

type Proofs struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
	Videos []string `json:"videos"`
}

func (p Proofs) HasImages() bool { return len(p.Images) > 0 }

type Submission struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	ChallengeID           string     `json:"challengeId,omitempty"`
	ChallengeName         string     `json:"challengeName,omitempty"`
	IsChallengeExists     bool       `json:"isChallengeExists"`
	Status                Status     `json:"status"`
	Proofs                Proofs     `json:"proofs"`
	Remarks               *string    `json:"remarks,omitempty"`
	SettledBy             *Source    `json:"settledBy,omitempty"`
	SubmittedAt           time.Time  `json:"submittedAt"`
	SettledAt             *time.Time `json:"settledAt,omitempty"`
	ModerationAttemptedAt *time.Time `json:"-"`
}

// Settlement is the outcome applied once to a pending submission.
type Settlement struct {
	SubmissionID string
	Status       Status
	Remarks      string
	Source       Source
	// Points credited when Status is COMPLETED.
	Points int64
}
