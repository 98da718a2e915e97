package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"REDEMPTION_POINTS", "REDEMPTION_AMOUNT", "CUSTOM_SUBMISSION_POINTS",
		"TIMEZONE", "STREAK_SWEEP_AT", "MODERATION_INTERVAL", "MODERATION_RETRY_AFTER",
		"PAYOUT_RECONCILE_INTERVAL", "MODERATION_BATCH", "MEDIA_BACKEND",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(3000), cfg.RedemptionPoints)
	assert.Equal(t, int64(200), cfg.RedemptionAmount)
	assert.Equal(t, int64(100), cfg.CustomSubmissionPoints)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, time.Hour, cfg.ModerationInterval)
	assert.Equal(t, 6*time.Hour, cfg.ModerationRetryAfter)
	assert.Equal(t, 10*time.Minute, cfg.PayoutReconcileInterval)
	assert.Equal(t, 1, cfg.ModerationBatch)
	assert.Equal(t, "local", cfg.MediaBackend)

	h, m, err := cfg.StreakSweepClock()
	require.NoError(t, err)
	assert.Equal(t, uint(0), h)
	assert.Equal(t, uint(5), m)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("timezone", func(t *testing.T) {
		t.Setenv("TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("MODERATION_INTERVAL", "hourly")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("sweep clock", func(t *testing.T) {
		t.Setenv("STREAK_SWEEP_AT", "25:99")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestAdminList(t *testing.T) {
	t.Setenv("ADMIN_CLERK_IDS", " user_a, ,user_b")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"user_a", "user_b"}, cfg.AdminClerkIDs)
	assert.True(t, cfg.IsAdmin("user_b"))
	assert.False(t, cfg.IsAdmin("user_c"))
}
