package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/reward"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

// Memory is a thread-safe in-memory Store. Each method runs under one lock,
// which gives it the same all-or-nothing behaviour as a Postgres transaction.
type Memory struct {
	mu           sync.Mutex
	users        map[string]*user.User
	clerkIndex   map[string]string
	categories   map[int]*category.Category
	nextCategory int
	challenges   map[string]*challenge.Challenge
	submissions  map[string]*submission.Submission
	entries      map[string]*reward.Entry
	destinations map[string]*reward.Destination
	chats        []*chat.Message
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]*user.User),
		clerkIndex:   make(map[string]string),
		categories:   make(map[int]*category.Category),
		challenges:   make(map[string]*challenge.Challenge),
		submissions:  make(map[string]*submission.Submission),
		entries:      make(map[string]*reward.Entry),
		destinations: make(map[string]*reward.Destination),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Users ----------------------------------------------------------------------

func (m *Memory) CreateUser(_ context.Context, u *user.User) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := m.users[u.ID]; ok {
		return nil, fmt.Errorf("user %s: %w", u.ID, ErrDuplicate)
	}
	if _, ok := m.clerkIndex[u.ClerkID]; ok && u.ClerkID != "" {
		return nil, fmt.Errorf("clerk id %s: %w", u.ClerkID, ErrDuplicate)
	}
	now := time.Now().UTC()
	stored := cloneUser(u)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.CurrentPoints = stored.TotalPointsEarned - stored.PointsUsed
	m.users[stored.ID] = stored
	if stored.ClerkID != "" {
		m.clerkIndex[stored.ClerkID] = stored.ID
	}
	return cloneUser(stored), nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByClerkID(_ context.Context, clerkID string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.clerkIndex[clerkID]
	if !ok {
		return nil, fmt.Errorf("user with clerk id %s: %w", clerkID, ErrNotFound)
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) MarkUserDeleted(_ context.Context, clerkID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.clerkIndex[clerkID]
	if !ok {
		return false, fmt.Errorf("user with clerk id %s: %w", clerkID, ErrNotFound)
	}
	u := m.users[id]
	if u.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	u.UpdatedAt = now
	return true, nil
}

func (m *Memory) SetInterests(_ context.Context, userID string, interests []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.Interests = append([]int(nil), interests...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ListStaleStreaks(_ context.Context, cutoff time.Time, afterID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, u := range m.users {
		if id <= afterID || !streakIsStale(u, cutoff) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) ResetStreakIfStale(_ context.Context, userID string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if !streakIsStale(u, cutoff) {
		return false, nil
	}
	u.CurrentStreak = 0
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func streakIsStale(u *user.User, cutoff time.Time) bool {
	return u.CurrentStreak > 0 && u.LastSubmittedAt != nil && u.LastSubmittedAt.Before(cutoff)
}

// Challenges -----------------------------------------------------------------

func (m *Memory) CreateChallenge(_ context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, ok := m.challenges[stored.ID]; ok {
		return nil, fmt.Errorf("challenge %s: %w", stored.ID, ErrDuplicate)
	}
	stored.CreatedAt = time.Now().UTC()
	m.challenges[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *Memory) GetChallenge(_ context.Context, id string) (*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", id, ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (m *Memory) ListChallenges(_ context.Context, categoryID int) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*challenge.Challenge
	for _, c := range m.challenges {
		if categoryID != 0 && c.CategoryID != categoryID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Categories -----------------------------------------------------------------

func (m *Memory) CreateCategory(_ context.Context, c *category.Category) (*category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return nil, fmt.Errorf("category %q: %w", c.Name, ErrDuplicate)
		}
	}
	m.nextCategory++
	stored := *c
	stored.ID = m.nextCategory
	stored.CreatedAt = time.Now().UTC()
	m.categories[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *Memory) ListCategories(context.Context) ([]*category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*category.Category, 0, len(m.categories))
	for _, c := range m.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCategoriesByIDs(_ context.Context, ids []int) ([]*category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int]bool, len(ids))
	var out []*category.Category
	for _, id := range ids {
		c, ok := m.categories[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Submissions ----------------------------------------------------------------

func (m *Memory) CreateSubmission(_ context.Context, s *submission.Submission) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[s.UserID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", s.UserID, ErrNotFound)
	}

	stored := cloneSubmission(s)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.SubmittedAt.IsZero() {
		stored.SubmittedAt = time.Now().UTC()
	}
	stored.Status = submission.StatusPending
	stored.Remarks = nil
	stored.SettledBy = nil
	stored.SettledAt = nil
	m.submissions[stored.ID] = stored

	u.ChallengesSubmitted++
	u.ChallengesInReview++
	u.CurrentStreak++
	if u.CurrentStreak > u.LongestStreak {
		u.LongestStreak = u.CurrentStreak
	}
	if u.LastSubmittedAt == nil || stored.SubmittedAt.After(*u.LastSubmittedAt) {
		at := stored.SubmittedAt
		u.LastSubmittedAt = &at
	}
	u.UpdatedAt = time.Now().UTC()

	return cloneSubmission(stored), nil
}

func (m *Memory) GetSubmission(_ context.Context, id string) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return cloneSubmission(s), nil
}

func (m *Memory) ListRecentSubmissions(_ context.Context, userID string, limit int) ([]*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*submission.Submission
	for _, s := range m.submissions {
		if s.UserID == userID {
			out = append(out, cloneSubmission(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetUserSubmissionForChallenge(_ context.Context, userID, challengeID string) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *submission.Submission
	for _, s := range m.submissions {
		if s.UserID != userID || s.ChallengeID != challengeID {
			continue
		}
		if latest == nil || s.SubmittedAt.After(latest.SubmittedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("submission for challenge %s: %w", challengeID, ErrNotFound)
	}
	return cloneSubmission(latest), nil
}

func (m *Memory) NextModerationCandidate(_ context.Context, attemptedBefore time.Time) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *submission.Submission
	for _, s := range m.submissions {
		if s.Status != submission.StatusPending || !s.Proofs.HasImages() {
			continue
		}
		if s.ModerationAttemptedAt != nil && !s.ModerationAttemptedAt.Before(attemptedBefore) {
			continue
		}
		if oldest == nil || s.SubmittedAt.Before(oldest.SubmittedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, fmt.Errorf("moderation candidate: %w", ErrNotFound)
	}
	return cloneSubmission(oldest), nil
}

func (m *Memory) MarkModerationAttempt(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[id]
	if !ok {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if s.Status == submission.StatusPending {
		s.ModerationAttemptedAt = &at
	}
	return nil
}

func (m *Memory) SettleSubmission(_ context.Context, st submission.Settlement) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[st.SubmissionID]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", st.SubmissionID, ErrNotFound)
	}
	if s.Status != submission.StatusPending {
		return cloneSubmission(s), fmt.Errorf("submission %s is %s: %w", s.ID, s.Status, ErrAlreadySettled)
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", s.UserID, ErrNotFound)
	}

	now := time.Now().UTC()
	remarks := st.Remarks
	source := st.Source
	s.Status = st.Status
	s.Remarks = &remarks
	s.SettledBy = &source
	s.SettledAt = &now

	u.ChallengesInReview--
	switch st.Status {
	case submission.StatusCompleted:
		u.ChallengesCompleted++
		u.TotalPointsEarned += st.Points
	case submission.StatusRejected:
		u.ChallengesRejected++
	}
	u.CurrentPoints = u.TotalPointsEarned - u.PointsUsed
	u.UpdatedAt = now

	return cloneSubmission(s), nil
}

// Rewards --------------------------------------------------------------------

func (m *Memory) ReserveAndCreateEntry(_ context.Context, e *reward.Entry) (*reward.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[e.UserID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", e.UserID, ErrNotFound)
	}
	if u.TotalPointsEarned-u.PointsUsed < e.PointsRewarded {
		return nil, fmt.Errorf("user %s has %d points, needs %d: %w",
			u.ID, u.TotalPointsEarned-u.PointsUsed, e.PointsRewarded, ErrInsufficientPoints)
	}

	stored := cloneEntry(e)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	for _, existing := range m.entries {
		if existing.IdempotencyKey == stored.IdempotencyKey {
			return nil, fmt.Errorf("reward entry key %s: %w", stored.IdempotencyKey, ErrDuplicate)
		}
	}
	stored.Status = reward.StatusPending
	stored.RewardedAt = time.Now().UTC()

	u.PointsUsed += stored.PointsRewarded
	u.CurrentPoints = u.TotalPointsEarned - u.PointsUsed
	u.UpdatedAt = stored.RewardedAt

	m.entries[stored.ID] = stored
	return cloneEntry(stored), nil
}

func (m *Memory) GetRewardEntry(_ context.Context, id string) (*reward.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("reward entry %s: %w", id, ErrNotFound)
	}
	return cloneEntry(e), nil
}

func (m *Memory) GetRewardEntryByKey(_ context.Context, key string) (*reward.Entry, error) {
	return m.findEntry(func(e *reward.Entry) bool { return e.IdempotencyKey == key })
}

func (m *Memory) GetRewardEntryByPayoutID(_ context.Context, payoutID string) (*reward.Entry, error) {
	return m.findEntry(func(e *reward.Entry) bool { return e.PayoutID != nil && *e.PayoutID == payoutID })
}

func (m *Memory) findEntry(match func(*reward.Entry) bool) (*reward.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if match(e) {
			return cloneEntry(e), nil
		}
	}
	return nil, fmt.Errorf("reward entry: %w", ErrNotFound)
}

func (m *Memory) ListRewardEntries(_ context.Context, userID string) ([]*reward.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*reward.Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RewardedAt.After(out[j].RewardedAt) })
	return out, nil
}

func (m *Memory) ListPendingRewardEntries(_ context.Context, createdBefore time.Time, limit int) ([]*reward.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*reward.Entry
	for _, e := range m.entries {
		if e.Status == reward.StatusPending && e.RewardedAt.Before(createdBefore) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RewardedAt.Before(out[j].RewardedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SetRewardPayoutID(_ context.Context, id, payoutID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("reward entry %s: %w", id, ErrNotFound)
	}
	if e.PayoutID == nil {
		e.PayoutID = &payoutID
	}
	return nil
}

func (m *Memory) PinRewardFundAccount(_ context.Context, id, fundAccountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return "", fmt.Errorf("reward entry %s: %w", id, ErrNotFound)
	}
	if e.FundAccountID == nil {
		if e.Status != reward.StatusPending {
			return "", fmt.Errorf("reward entry %s is %s: %w", id, e.Status, ErrAlreadySettled)
		}
		e.FundAccountID = &fundAccountID
	}
	return *e.FundAccountID, nil
}

func (m *Memory) FinalizeRewardEntry(_ context.Context, id string, status reward.Status, reason string) (*reward.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false, fmt.Errorf("reward entry %s: %w", id, ErrNotFound)
	}
	if e.Status != reward.StatusPending {
		return cloneEntry(e), false, nil
	}

	now := time.Now().UTC()
	e.Status = status
	e.SettledAt = &now
	if reason != "" {
		r := reason
		e.FailureReason = &r
	}
	if status == reward.StatusFailed {
		if u, ok := m.users[e.UserID]; ok {
			u.PointsUsed -= e.PointsRewarded
			u.CurrentPoints = u.TotalPointsEarned - u.PointsUsed
			u.UpdatedAt = now
		}
	}
	return cloneEntry(e), true, nil
}

func (m *Memory) GetDestination(_ context.Context, vpaAddress, contactID string) (*reward.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.destinations[destinationKey(vpaAddress, contactID)]
	if !ok {
		return nil, fmt.Errorf("destination %s: %w", vpaAddress, ErrNotFound)
	}
	out := *d
	return &out, nil
}

func (m *Memory) SaveDestination(_ context.Context, d *reward.Destination) (*reward.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := destinationKey(d.VPAAddress, d.ContactID)
	if existing, ok := m.destinations[key]; ok {
		out := *existing
		return &out, nil
	}
	stored := *d
	stored.CreatedAt = time.Now().UTC()
	m.destinations[key] = &stored
	out := stored
	return &out, nil
}

// Chat -----------------------------------------------------------------------

func (m *Memory) CreateChatMessage(_ context.Context, msg *chat.Message) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[msg.UserID]; !ok {
		return nil, fmt.Errorf("user %s: %w", msg.UserID, ErrNotFound)
	}
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = time.Now().UTC()
	m.chats = append(m.chats, &stored)
	out := stored
	return &out, nil
}

func (m *Memory) ListChatMessages(_ context.Context, userID string) ([]*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*chat.Message
	for _, msg := range m.chats {
		if msg.UserID == userID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func destinationKey(vpa, contact string) string { return contact + "/" + vpa }

// Clones keep callers from mutating store-owned records.

func cloneUser(u *user.User) *user.User {
	out := *u
	out.Interests = append([]int(nil), u.Interests...)
	if u.LastSubmittedAt != nil {
		t := *u.LastSubmittedAt
		out.LastSubmittedAt = &t
	}
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func cloneSubmission(s *submission.Submission) *submission.Submission {
	out := *s
	out.Proofs.Images = append([]string(nil), s.Proofs.Images...)
	out.Proofs.Videos = append([]string(nil), s.Proofs.Videos...)
	return &out
}

func cloneEntry(e *reward.Entry) *reward.Entry {
	out := *e
	if e.FundAccountID != nil {
		id := *e.FundAccountID
		out.FundAccountID = &id
	}
	if e.PayoutID != nil {
		id := *e.PayoutID
		out.PayoutID = &id
	}
	return &out
}
