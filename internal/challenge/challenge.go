package challenge

import (
	"time"
)

type Level string

const (
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
)

// SubmissionType declares which proof a challenge expects.
type SubmissionType string

const (
	SubmissionText  SubmissionType = "TEXT"
	SubmissionImage SubmissionType = "IMAGE"
	SubmissionVideo SubmissionType = "VIDEO"
	SubmissionAny   SubmissionType = "ANY"
)

// Challenge is an immutable catalog entry. Rows are only ever inserted.
type Challenge struct {
	ID              string         `json:"id" db:"id"`
	Title           string         `json:"title" db:"title"`
	Description     string         `json:"description" db:"description"`
	LongDescription string         `json:"longDescription" db:"long_description"`
	CategoryID      int            `json:"category" db:"category_id"`
	TimeMinutes     int            `json:"time" db:"time_minutes"`
	Points          int64          `json:"points" db:"points"`
	Level           Level          `json:"level" db:"level"`
	SubmissionType  SubmissionType `json:"submissionType" db:"submission_type"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
}

// Context is the text handed to the content validator.
func (c *Challenge) Context() string {
	if c.LongDescription != "" {
		return c.LongDescription
	}
	return c.Description
}

type CreateChallengeRequest struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	LongDescription string         `json:"longDescription"`
	CategoryID      int            `json:"category"`
	TimeMinutes     int            `json:"time"`
	Points          int64          `json:"points"`
	Level           Level          `json:"level"`
	SubmissionType  SubmissionType `json:"submissionType"`
}
