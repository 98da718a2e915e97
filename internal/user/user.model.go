package user

import "time"

type User struct {
	ID                  string     `json:"id"`
	ClerkID             string     `json:"clerkId"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	Name                string     `json:"name"`
	ImageURL            string     `json:"imageUrl,omitempty"`
	CurrentPoints       int64      `json:"currentPoints"`
	TotalPointsEarned   int64      `json:"totalPointsEarned"`
	PointsUsed          int64      `json:"pointsUsed"`
	CurrentStreak       int        `json:"currentStreak"`
	LongestStreak       int        `json:"longestStreak"`
	ChallengesSubmitted int        `json:"challengesSubmitted"`
	ChallengesInReview  int        `json:"challengesInReview"`
	ChallengesCompleted int        `json:"challengesCompleted"`
	ChallengesRejected  int        `json:"challengesRejected"`
	Interests           []int      `json:"interests"`
	LastSubmittedAt     *time.Time `json:"lastSubmittedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	// DeletedAt is set when the identity provider removes the account. The
	// row and its counters stay so settlements and payouts still resolve.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (u *User) Deleted() bool { return u.DeletedAt != nil }

// LedgerConsistent reports whether the correlated counters agree with each other.
func (u *User) LedgerConsistent() bool {
	return u.CurrentPoints == u.TotalPointsEarned-u.PointsUsed &&
		u.LongestStreak >= u.CurrentStreak &&
		u.ChallengesInReview == u.ChallengesSubmitted-u.ChallengesCompleted-u.ChallengesRejected &&
		u.CurrentPoints >= 0 && u.PointsUsed >= 0 && u.ChallengesInReview >= 0
}
