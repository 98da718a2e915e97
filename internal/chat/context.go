package chat

import (
	"fmt"
	"sort"
	"strings"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

// UserContext is everything the progress coach may see about one user.
type UserContext struct {
	User        *user.User
	Submissions []*submission.Submission
	// Challenges maps challenge id to the catalog entry for Submissions.
	Challenges map[string]*challenge.Challenge
	Categories []*category.Category
}

const customLabel = "Custom"

// String renders the context as plain text for the prompt.
func (c UserContext) String() string {
	u := c.User
	var b strings.Builder
	b.WriteString("User data:\n")
	fmt.Fprintf(&b, "- Points: %d available, %d earned in total, %d redeemed\n", u.CurrentPoints, u.TotalPointsEarned, u.PointsUsed)
	fmt.Fprintf(&b, "- Streak: %d days now, %d days at best\n", u.CurrentStreak, u.LongestStreak)
	fmt.Fprintf(&b, "- Challenges: %d submitted, %d completed, %d rejected, %d in review\n",
		u.ChallengesSubmitted, u.ChallengesCompleted, u.ChallengesRejected, u.ChallengesInReview)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Member since: %s\n", u.CreatedAt.Format("2 Jan 2006"))
	}

	names := make(map[int]string, len(c.Categories))
	for _, cat := range c.Categories {
		names[cat.ID] = cat.Name
	}
	if len(u.Interests) > 0 {
		interests := make([]string, 0, len(u.Interests))
		for _, id := range u.Interests {
			if name, ok := names[id]; ok {
				interests = append(interests, name)
			}
		}
		if len(interests) > 0 {
			fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(interests, ", "))
		}
	}

	if len(c.Submissions) == 0 {
		b.WriteString("\nNo submissions yet.\n")
		return b.String()
	}

	var platform, custom int
	byStatus := map[submission.Status]int{}
	byCategory := map[string]int{}
	for _, s := range c.Submissions {
		byStatus[s.Status]++
		label := customLabel
		if ch, ok := c.Challenges[s.ChallengeID]; ok && s.IsChallengeExists {
			platform++
			if name, ok := names[ch.CategoryID]; ok {
				label = name
			} else {
				label = fmt.Sprintf("Category %d", ch.CategoryID)
			}
		} else {
			custom++
		}
		byCategory[label]++
	}

	fmt.Fprintf(&b, "\nRecent submissions (%d): %d platform challenges, %d custom\n", len(c.Submissions), platform, custom)
	fmt.Fprintf(&b, "- By status: %d completed, %d rejected, %d pending\n",
		byStatus[submission.StatusCompleted], byStatus[submission.StatusRejected], byStatus[submission.StatusPending])

	labels := make([]string, 0, len(byCategory))
	for label := range byCategory {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	b.WriteString("- By category:")
	for i, label := range labels {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s %d", label, byCategory[label])
	}
	b.WriteString("\n\nLatest first:\n")

	for _, s := range c.Submissions {
		title := s.ChallengeName
		if ch, ok := c.Challenges[s.ChallengeID]; ok && s.IsChallengeExists {
			title = ch.Title
		}
		if title == "" {
			title = customLabel
		}
		fmt.Fprintf(&b, "- %s [%s] %s", s.SubmittedAt.Format("2 Jan 2006"), s.Status, title)
		if note := strings.TrimSpace(s.Proofs.Text); note != "" {
			fmt.Fprintf(&b, ": %s", truncate(note, 160))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
