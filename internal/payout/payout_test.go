package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := map[string]Outcome{
		"processed":  OutcomeCompleted,
		"PROCESSED":  OutcomeCompleted,
		"failed":     OutcomeFailed,
		"cancelled":  OutcomeFailed,
		"reversed":   OutcomeFailed,
		"rejected":   OutcomeFailed,
		"pending":    OutcomePending,
		"queued":     OutcomePending,
		"processing": OutcomePending,
		"":           OutcomePending,
		"mystery":    OutcomePending,
	}
	for status, want := range tests {
		assert.Equal(t, want, Classify(status), status)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *RazorpayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRazorpayClient(RazorpayConfig{
		BaseURL:       srv.URL + "/",
		KeyID:         "rzp_key",
		KeySecret:     "rzp_secret",
		AccountNumber: "2323230000000000",
		Timeout:       2 * time.Second,
	})
}

func TestCreatePayoutSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payouts", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.Equal(t, "key-1", r.Header.Get(idempotencyHeader))

		var body payoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(20000), body.Amount)
		assert.Equal(t, "fa_1", body.FundAccountID)
		assert.Equal(t, "UPI", body.Mode)
		assert.Equal(t, "INR", body.Currency)
		assert.False(t, body.QueueIfLowBalance)
		assert.Equal(t, "entry-1", body.ReferenceID)

		w.Write([]byte(`{"id":"pout_1","status":"processing","reference_id":"entry-1"}`))
	})

	p, err := client.CreatePayout(context.Background(), PayoutRequest{
		FundAccountID: "fa_1", Amount: 200, IdempotencyKey: "key-1", ReferenceID: "entry-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pout_1", p.ID)
	assert.Equal(t, OutcomePending, p.Outcome())
}

func TestCreatePayoutErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		definitive bool
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"description":"invalid vpa"}}`, definitive: true},
		{name: "unauthorized", status: http.StatusUnauthorized, definitive: true},
		{name: "conflict", status: http.StatusConflict, definitive: false},
		{name: "rate limited", status: http.StatusTooManyRequests, definitive: false},
		{name: "server error", status: http.StatusBadGateway, definitive: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := client.CreatePayout(context.Background(), PayoutRequest{FundAccountID: "fa", Amount: 1, IdempotencyKey: "k"})
			require.Error(t, err)
			assert.Equal(t, tt.definitive, IsDefinitive(err))

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestCreatePayoutTimeoutIsIndeterminate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreatePayout(ctx, PayoutRequest{FundAccountID: "fa", Amount: 1, IdempotencyKey: "k"})
	require.Error(t, err)
	assert.False(t, IsDefinitive(err))
}

func TestCreatePayoutRequiresKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("processor must not be called without an idempotency key")
	})
	_, err := client.CreatePayout(context.Background(), PayoutRequest{FundAccountID: "fa", Amount: 1})
	assert.True(t, IsDefinitive(err))
}

func TestCreateFundAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fund_accounts", r.URL.Path)
		var body fundAccountRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cont_1", body.ContactID)
		assert.Equal(t, "vpa", body.AccountType)
		assert.Equal(t, "me@upi", body.VPA.Address)
		w.Write([]byte(`{"id":"fa_9","entity":"fund_account"}`))
	})

	id, err := client.CreateFundAccount(context.Background(), "cont_1", "me@upi")
	require.NoError(t, err)
	assert.Equal(t, "fa_9", id)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payout.processed"}`)
	sig := Sign(body, "whsec")

	assert.NoError(t, VerifySignature(body, sig, "whsec"))
	assert.ErrorIs(t, VerifySignature(body, sig, "other"), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature(body, "", "whsec"), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature(body, sig, ""), ErrBadSignature)
}

func TestParseWebhookEvent(t *testing.T) {
	body := []byte(`{
		"entity": "event",
		"event": "payout.reversed",
		"payload": {"payout": {"entity": {
			"id": "pout_7", "status": "reversed", "reference_id": "entry-7",
			"status_details": {"description": "beneficiary bank offline"}
		}}}
	}`)
	ev, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "pout_7", ev.PayoutID)
	assert.Equal(t, "entry-7", ev.ReferenceID)
	assert.Equal(t, OutcomeFailed, ev.Outcome())
	assert.Equal(t, "beneficiary bank offline", ev.FailureReason)

	other, err := ParseWebhookEvent([]byte(`{"event":"fund_account.validation.completed"}`))
	require.NoError(t, err)
	assert.Empty(t, other.PayoutID)

	_, err = ParseWebhookEvent([]byte(`{"event":"payout.processed","payload":{}}`))
	assert.ErrorIs(t, err, ErrBadEvent)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadEvent)
}
