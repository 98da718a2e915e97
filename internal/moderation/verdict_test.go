package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"zenithAPI/internal/submission"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   VerdictKind
		reason string
	}{
		{
			name:   "accept",
			raw:    `{"isValid": true, "reason": "Great job!", "suggestedStatus": "COMPLETED"}`,
			kind:   VerdictAccept,
			reason: "Great job!",
		},
		{
			name:   "reject in fence",
			raw:    "```json\n{\"isValid\": false, \"reason\": \"Add a photo next time.\", \"suggestedStatus\": \"REJECTED\"}\n```",
			kind:   VerdictReject,
			reason: "Add a photo next time.",
		},
		{name: "bare fence", raw: "```\n{\"isValid\": true, \"reason\": \"ok\", \"suggestedStatus\": \"COMPLETED\"}\n```", kind: VerdictAccept, reason: "ok"},
		{name: "empty", raw: "   ", kind: VerdictUnparseable},
		{name: "prose", raw: "Looks good to me!", kind: VerdictUnparseable},
		{name: "array", raw: `[{"isValid": true}]`, kind: VerdictUnparseable},
		{name: "missing status", raw: `{"isValid": true, "reason": "ok"}`, kind: VerdictUnparseable},
		{name: "string bool", raw: `{"isValid": "true", "reason": "ok", "suggestedStatus": "COMPLETED"}`, kind: VerdictUnparseable},
		{name: "empty reason", raw: `{"isValid": true, "reason": " ", "suggestedStatus": "COMPLETED"}`, kind: VerdictUnparseable},
		{name: "pending status", raw: `{"isValid": true, "reason": "ok", "suggestedStatus": "PENDING"}`, kind: VerdictUnparseable},
		{name: "contradiction", raw: `{"isValid": false, "reason": "ok", "suggestedStatus": "COMPLETED"}`, kind: VerdictUnparseable},
		{name: "truncated", raw: `{"isValid": true, "reason": "ok", "suggestedSta`, kind: VerdictUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerdict(tt.raw)
			assert.Equal(t, tt.kind, v.Kind, v.Problem)
			assert.Equal(t, tt.reason, v.Reason)
			if tt.kind == VerdictUnparseable {
				assert.False(t, v.Decisive())
				assert.NotEmpty(t, v.Problem)
				_, ok := v.Status()
				assert.False(t, ok)
			}
		})
	}
}

func TestVerdictStatus(t *testing.T) {
	status, ok := Verdict{Kind: VerdictAccept}.Status()
	assert.True(t, ok)
	assert.Equal(t, submission.StatusCompleted, status)

	status, ok = Verdict{Kind: VerdictReject}.Status()
	assert.True(t, ok)
	assert.Equal(t, submission.StatusRejected, status)
}

func TestBuildPrompt(t *testing.T) {
	custom := BuildPrompt("I meditated", CustomSubmissionContext)
	assert.Contains(t, custom, "custom achievement")
	assert.Contains(t, custom, `"I meditated"`)
	assert.NotContains(t, custom, "Challenge Description")

	withChallenge := BuildPrompt("ran 5k", "Run five kilometres before breakfast")
	assert.Contains(t, withChallenge, `Challenge Description: "Run five kilometres before breakfast"`)
	assert.True(t, strings.Contains(withChallenge, "suggestedStatus"))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("uploads/a.PNG"))
	assert.Equal(t, "image/jpeg", MIMEType("b.jpeg"))
	assert.Equal(t, "application/octet-stream", MIMEType("c.mp4"))
}
