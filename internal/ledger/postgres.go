package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/reward"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// row is satisfied by pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users ----------------------------------------------------------------------

const userColumns = `
	id, clerk_id, email, username, name, image_url,
	current_points, total_points_earned, points_used,
	current_streak, longest_streak,
	challenges_submitted, challenges_in_review, challenges_completed, challenges_rejected,
	interests, last_submitted_at, created_at, updated_at, deleted_at`

func scanUser(r row) (*user.User, error) {
	u := &user.User{}
	err := r.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.Name,
		&u.ImageURL,
		&u.CurrentPoints,
		&u.TotalPointsEarned,
		&u.PointsUsed,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.ChallengesSubmitted,
		&u.ChallengesInReview,
		&u.ChallengesCompleted,
		&u.ChallengesRejected,
		&u.Interests,
		&u.LastSubmittedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *user.User) (*user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	interests := u.Interests
	if interests == nil {
		interests = []int{}
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, name, image_url, interests)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING` + userColumns

	created, err := scanUser(s.db.QueryRow(ctx, query,
		u.ID, u.ClerkID, u.Email, u.Username, u.Name, u.ImageURL, interests,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", u.ClerkID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user "+id)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if err != nil {
		return nil, notFound(err, "user with clerk id "+clerkID)
	}
	return u, nil
}

func (s *PostgresStore) MarkUserDeleted(ctx context.Context, clerkID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE clerk_id = $1 AND deleted_at IS NULL`,
		clerkID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark user deleted: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.GetUserByClerkID(ctx, clerkID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) SetInterests(ctx context.Context, userID string, interests []int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET interests = $2, updated_at = NOW() WHERE id = $1`,
		userID, interests,
	)
	if err != nil {
		return fmt.Errorf("failed to update interests: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListStaleStreaks(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]string, error) {
	query := `
	SELECT id FROM users
	WHERE current_streak > 0
	  AND last_submitted_at < $1
	  AND id::text > $2
	ORDER BY id::text
	LIMIT $3
	`
	rows, err := s.db.Query(ctx, query, cutoff, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale streaks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ResetStreakIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error) {
	query := `
	UPDATE users
	SET current_streak = 0, updated_at = NOW()
	WHERE id = $1
	  AND current_streak > 0
	  AND last_submitted_at < $2
	`
	tag, err := s.db.Exec(ctx, query, userID, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to reset streak: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Challenges -----------------------------------------------------------------

const challengeColumns = `
	id, title, description, long_description, category_id, time_minutes,
	points, level, submission_type, created_at`

func scanChallenge(r row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := r.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.LongDescription,
		&c.CategoryID,
		&c.TimeMinutes,
		&c.Points,
		&c.Level,
		&c.SubmissionType,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) CreateChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `
	INSERT INTO challenges (id, title, description, long_description, category_id, time_minutes, points, level, submission_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING` + challengeColumns

	created, err := scanChallenge(s.db.QueryRow(ctx, query,
		c.ID, c.Title, c.Description, c.LongDescription, c.CategoryID,
		c.TimeMinutes, c.Points, c.Level, c.SubmissionType,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("challenge %s: %w", id, ErrNotFound)
	}
	c, err := scanChallenge(s.db.QueryRow(ctx, `SELECT`+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "challenge "+id)
	}
	return c, nil
}

func (s *PostgresStore) ListChallenges(ctx context.Context, categoryID int) ([]*challenge.Challenge, error) {
	query := `SELECT` + challengeColumns + ` FROM challenges WHERE ($1 = 0 OR category_id = $1) ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Categories -----------------------------------------------------------------

const categoryColumns = ` id, name, description, created_at`

func scanCategory(r row) (*category.Category, error) {
	c := &category.Category{}
	if err := r.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *category.Category) (*category.Category, error) {
	query := `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING` + categoryColumns
	created, err := scanCategory(s.db.QueryRow(ctx, query, c.Name, c.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", c.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*category.Category, error) {
	return s.queryCategories(ctx, `SELECT`+categoryColumns+` FROM categories ORDER BY id`)
}

func (s *PostgresStore) GetCategoriesByIDs(ctx context.Context, ids []int) ([]*category.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryCategories(ctx, `SELECT`+categoryColumns+` FROM categories WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *PostgresStore) queryCategories(ctx context.Context, query string, args ...any) ([]*category.Category, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*category.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Submissions ----------------------------------------------------------------

const submissionColumns = `
	id, user_id, challenge_id, challenge_name, is_challenge_exists, status,
	proofs, remarks, settled_by, submitted_at, settled_at, moderation_attempted_at`

func scanSubmission(r row) (*submission.Submission, error) {
	sub := &submission.Submission{}
	var proofs []byte
	var settledBy *string
	err := r.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ChallengeID,
		&sub.ChallengeName,
		&sub.IsChallengeExists,
		&sub.Status,
		&proofs,
		&sub.Remarks,
		&settledBy,
		&sub.SubmittedAt,
		&sub.SettledAt,
		&sub.ModerationAttemptedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(proofs, &sub.Proofs); err != nil {
		return nil, fmt.Errorf("invalid proofs on submission %s: %w", sub.ID, err)
	}
	if settledBy != nil {
		src := submission.Source(*settledBy)
		sub.SettledBy = &src
	}
	return sub, nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *submission.Submission) (*submission.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	proofs := sub.Proofs
	if proofs.Images == nil {
		proofs.Images = []string{}
	}
	if proofs.Videos == nil {
		proofs.Videos = []string{}
	}
	proofsJSON, err := json.Marshal(proofs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proofs: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
	INSERT INTO submissions (id, user_id, challenge_id, challenge_name, is_challenge_exists, status, proofs, submitted_at)
	VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, $7)
	RETURNING` + submissionColumns

	created, err := scanSubmission(tx.QueryRow(ctx, insertQuery,
		sub.ID, sub.UserID, sub.ChallengeID, sub.ChallengeName,
		sub.IsChallengeExists, proofsJSON, sub.SubmittedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	// Right-hand sides see the pre-update row, so longest_streak compares
	// against the incremented streak.
	submitEffect := `
	UPDATE users
	SET challenges_submitted = challenges_submitted + 1,
	    challenges_in_review = challenges_in_review + 1,
	    current_streak = current_streak + 1,
	    longest_streak = GREATEST(longest_streak, current_streak + 1),
	    last_submitted_at = GREATEST(COALESCE(last_submitted_at, $2), $2),
	    updated_at = NOW()
	WHERE id = $1
	`
	tag, err := tx.Exec(ctx, submitEffect, sub.UserID, created.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to apply submit effect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("user %s: %w", sub.UserID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*submission.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	sub, err := scanSubmission(s.db.QueryRow(ctx, `SELECT`+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "submission "+id)
	}
	return sub, nil
}

func (s *PostgresStore) ListRecentSubmissions(ctx context.Context, userID string, limit int) ([]*submission.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUserSubmissionForChallenge(ctx context.Context, userID, challengeID string) (*submission.Submission, error) {
	query := `
	SELECT` + submissionColumns + `
	FROM submissions
	WHERE user_id = $1 AND challenge_id = $2
	ORDER BY submitted_at DESC
	LIMIT 1
	`
	sub, err := scanSubmission(s.db.QueryRow(ctx, query, userID, challengeID))
	if err != nil {
		return nil, notFound(err, "submission for challenge "+challengeID)
	}
	return sub, nil
}

func (s *PostgresStore) NextModerationCandidate(ctx context.Context, attemptedBefore time.Time) (*submission.Submission, error) {
	query := `
	SELECT` + submissionColumns + `
	FROM submissions
	WHERE status = 'PENDING'
	  AND jsonb_array_length(proofs->'images') > 0
	  AND (moderation_attempted_at IS NULL OR moderation_attempted_at < $1)
	ORDER BY submitted_at ASC
	LIMIT 1
	`
	sub, err := scanSubmission(s.db.QueryRow(ctx, query, attemptedBefore))
	if err != nil {
		return nil, notFound(err, "moderation candidate")
	}
	return sub, nil
}

func (s *PostgresStore) MarkModerationAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE submissions SET moderation_attempted_at = $2 WHERE id = $1 AND status = 'PENDING'`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark moderation attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) SettleSubmission(ctx context.Context, st submission.Settlement) (*submission.Submission, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	guard := `
	UPDATE submissions
	SET status = $2, remarks = $3, settled_by = $4, settled_at = NOW()
	WHERE id = $1 AND status = 'PENDING'
	RETURNING` + submissionColumns

	settled, err := scanSubmission(tx.QueryRow(ctx, guard, st.SubmissionID, st.Status, st.Remarks, string(st.Source)))
	if errors.Is(err, pgx.ErrNoRows) {
		tx.Rollback(ctx)
		current, getErr := s.GetSubmission(ctx, st.SubmissionID)
		if getErr != nil {
			return nil, getErr
		}
		return current, fmt.Errorf("submission %s is %s: %w", current.ID, current.Status, ErrAlreadySettled)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle submission: %w", err)
	}

	var effect string
	var args []any
	switch st.Status {
	case submission.StatusCompleted:
		effect = `
		UPDATE users
		SET challenges_in_review = challenges_in_review - 1,
		    challenges_completed = challenges_completed + 1,
		    total_points_earned = total_points_earned + $2,
		    updated_at = NOW()
		WHERE id = $1
		`
		args = []any{settled.UserID, st.Points}
	default:
		effect = `
		UPDATE users
		SET challenges_in_review = challenges_in_review - 1,
		    challenges_rejected = challenges_rejected + 1,
		    updated_at = NOW()
		WHERE id = $1
		`
		args = []any{settled.UserID}
	}
	tag, err := tx.Exec(ctx, effect, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to apply settlement effect: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("user %s: %w", settled.UserID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return settled, nil
}

// Rewards --------------------------------------------------------------------

const entryColumns = `
	id, user_id, points_rewarded, amount, vpa_address, reward_type, status,
	idempotency_key, fund_account_id, payout_id, failure_reason, rewarded_at, settled_at`

func scanEntry(r row) (*reward.Entry, error) {
	e := &reward.Entry{}
	err := r.Scan(
		&e.ID,
		&e.UserID,
		&e.PointsRewarded,
		&e.Amount,
		&e.VPAAddress,
		&e.RewardType,
		&e.Status,
		&e.IdempotencyKey,
		&e.FundAccountID,
		&e.PayoutID,
		&e.FailureReason,
		&e.RewardedAt,
		&e.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) ReserveAndCreateEntry(ctx context.Context, e *reward.Entry) (*reward.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	reserve := `
	UPDATE users
	SET points_used = points_used + $2, updated_at = NOW()
	WHERE id = $1 AND total_points_earned - points_used >= $2
	`
	tag, err := tx.Exec(ctx, reserve, e.UserID, e.PointsRewarded)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, e.UserID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("user %s: %w", e.UserID, ErrNotFound)
		}
		return nil, fmt.Errorf("user %s needs %d points: %w", e.UserID, e.PointsRewarded, ErrInsufficientPoints)
	}

	insert := `
	INSERT INTO reward_entries (id, user_id, points_rewarded, amount, vpa_address, reward_type, status, idempotency_key)
	VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7)
	RETURNING` + entryColumns

	created, err := scanEntry(tx.QueryRow(ctx, insert,
		e.ID, e.UserID, e.PointsRewarded, e.Amount, e.VPAAddress, e.RewardType, e.IdempotencyKey,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("reward entry key %s: %w", e.IdempotencyKey, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create reward entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetRewardEntry(ctx context.Context, id string) (*reward.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("reward entry %s: %w", id, ErrNotFound)
	}
	e, err := scanEntry(s.db.QueryRow(ctx, `SELECT`+entryColumns+` FROM reward_entries WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "reward entry "+id)
	}
	return e, nil
}

func (s *PostgresStore) GetRewardEntryByKey(ctx context.Context, key string) (*reward.Entry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `SELECT`+entryColumns+` FROM reward_entries WHERE idempotency_key = $1`, key))
	if err != nil {
		return nil, notFound(err, "reward entry with key "+key)
	}
	return e, nil
}

func (s *PostgresStore) GetRewardEntryByPayoutID(ctx context.Context, payoutID string) (*reward.Entry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `SELECT`+entryColumns+` FROM reward_entries WHERE payout_id = $1`, payoutID))
	if err != nil {
		return nil, notFound(err, "reward entry with payout "+payoutID)
	}
	return e, nil
}

func (s *PostgresStore) ListRewardEntries(ctx context.Context, userID string) ([]*reward.Entry, error) {
	return s.listEntries(ctx,
		`SELECT`+entryColumns+` FROM reward_entries WHERE user_id = $1 ORDER BY rewarded_at DESC`,
		userID,
	)
}

func (s *PostgresStore) ListPendingRewardEntries(ctx context.Context, createdBefore time.Time, limit int) ([]*reward.Entry, error) {
	return s.listEntries(ctx,
		`SELECT`+entryColumns+` FROM reward_entries WHERE status = 'PENDING' AND rewarded_at < $1 ORDER BY rewarded_at LIMIT $2`,
		createdBefore, limit,
	)
}

func (s *PostgresStore) listEntries(ctx context.Context, query string, args ...any) ([]*reward.Entry, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reward entries: %w", err)
	}
	defer rows.Close()

	var out []*reward.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetRewardPayoutID(ctx context.Context, id, payoutID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE reward_entries SET payout_id = $2 WHERE id = $1 AND payout_id IS NULL`,
		id, payoutID,
	)
	if err != nil {
		return fmt.Errorf("failed to set payout id: %w", err)
	}
	return nil
}

func (s *PostgresStore) PinRewardFundAccount(ctx context.Context, id, fundAccountID string) (string, error) {
	query := `
	UPDATE reward_entries
	SET fund_account_id = COALESCE(fund_account_id, $2)
	WHERE id = $1 AND (fund_account_id IS NOT NULL OR status = 'PENDING')
	RETURNING fund_account_id
	`
	var pinned string
	err := s.db.QueryRow(ctx, query, id, fundAccountID).Scan(&pinned)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := s.GetRewardEntry(ctx, id)
		if getErr != nil {
			return "", getErr
		}
		return "", fmt.Errorf("reward entry %s is %s: %w", id, current.Status, ErrAlreadySettled)
	}
	if err != nil {
		return "", fmt.Errorf("failed to pin fund account: %w", err)
	}
	return pinned, nil
}

func (s *PostgresStore) FinalizeRewardEntry(ctx context.Context, id string, status reward.Status, reason string) (*reward.Entry, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	guard := `
	UPDATE reward_entries
	SET status = $2, failure_reason = NULLIF($3, ''), settled_at = NOW()
	WHERE id = $1 AND status = 'PENDING'
	RETURNING` + entryColumns

	finalized, err := scanEntry(tx.QueryRow(ctx, guard, id, status, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		tx.Rollback(ctx)
		current, getErr := s.GetRewardEntry(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to finalize reward entry: %w", err)
	}

	if status == reward.StatusFailed {
		release := `
		UPDATE users
		SET points_used = points_used - $2, updated_at = NOW()
		WHERE id = $1
		`
		if _, err := tx.Exec(ctx, release, finalized.UserID, finalized.PointsRewarded); err != nil {
			return nil, false, fmt.Errorf("failed to release points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return finalized, true, nil
}

func (s *PostgresStore) GetDestination(ctx context.Context, vpaAddress, contactID string) (*reward.Destination, error) {
	d := &reward.Destination{}
	err := s.db.QueryRow(ctx,
		`SELECT fund_account_id, contact_id, vpa_address, created_at FROM payout_destinations WHERE vpa_address = $1 AND contact_id = $2`,
		vpaAddress, contactID,
	).Scan(&d.FundAccountID, &d.ContactID, &d.VPAAddress, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err, "destination "+vpaAddress)
	}
	return d, nil
}

func (s *PostgresStore) SaveDestination(ctx context.Context, d *reward.Destination) (*reward.Destination, error) {
	_, err := s.db.Exec(ctx, `
	INSERT INTO payout_destinations (fund_account_id, contact_id, vpa_address)
	VALUES ($1, $2, $3)
	ON CONFLICT DO NOTHING
	`, d.FundAccountID, d.ContactID, d.VPAAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to save destination: %w", err)
	}
	return s.GetDestination(ctx, d.VPAAddress, d.ContactID)
}

// Chat -----------------------------------------------------------------------

const chatColumns = ` id, user_id, query, response, query_type, created_at`

func scanChatMessage(r row) (*chat.Message, error) {
	msg := &chat.Message{}
	if err := r.Scan(&msg.ID, &msg.UserID, &msg.Query, &msg.Response, &msg.QueryType, &msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PostgresStore) CreateChatMessage(ctx context.Context, msg *chat.Message) (*chat.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	query := `
	INSERT INTO chat_messages (id, user_id, query, response, query_type)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING` + chatColumns

	created, err := scanChatMessage(s.db.QueryRow(ctx, query, msg.ID, msg.UserID, msg.Query, msg.Response, msg.QueryType))
	if err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, userID string) ([]*chat.Message, error) {
	rows, err := s.db.Query(ctx, `SELECT`+chatColumns+` FROM chat_messages WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var out []*chat.Message
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
