package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/storage/memory"
)

type fakeRunner struct {
	summary *domain.PassSummary
	err     error
	calls   int
	trigger string
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (*domain.PassSummary, error) {
	f.calls++
	f.trigger = trigger
	return f.summary, f.err
}

func (f *fakeRunner) InFlight() int { return 0 }

func (f *fakeRunner) LastSummary() *domain.PassSummary { return f.summary }

func newTestServer(t *testing.T, runner *fakeRunner, secret string) (*httptest.Server, *memory.ActivityStore, *memory.RunStore) {
	t.Helper()
	activity := memory.NewActivityStore()
	runs := memory.NewRunStore()
	srv := New(Options{
		CronSecret: secret,
		Runner:     runner,
		Activity:   activity,
		Runs:       runs,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, activity, runs
}

func doRequest(t *testing.T, method, url, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func passSummary() *domain.PassSummary {
	return &domain.PassSummary{
		PassID:          "pass-1",
		Mode:            domain.ModeDirect,
		TotalWallets:    2,
		Claimed:         1,
		Bought:          1,
		NoToken:         1,
		TotalClaimedSOL: decimal.RequireFromString("0.05"),
		Results: []domain.WalletRunResult{
			{WalletID: "w1", State: domain.StateDoneSplit},
			{WalletID: "w2", State: domain.StateNoToken},
		},
	}
}

func TestCron_Success(t *testing.T) {
	runner := &fakeRunner{summary: passSummary()}
	ts, _, _ := newTestServer(t, runner, "s3cret")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, body := doRequest(t, method, ts.URL+"/api/cron", "s3cret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "pass-1", body["pass_id"])
		assert.EqualValues(t, 2, body["total_wallets"])
		assert.Len(t, body["results"], 2)
	}
	assert.Equal(t, 2, runner.calls)
	assert.Equal(t, "http", runner.trigger)
}

func TestCron_Unauthorized(t *testing.T) {
	runner := &fakeRunner{summary: passSummary()}
	ts, _, _ := newTestServer(t, runner, "s3cret")

	for _, token := range []string{"", "wrong"} {
		resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/cron", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Unauthorized", body["error"])
	}
	assert.Zero(t, runner.calls)
}

func TestCron_SecretNotConfigured(t *testing.T) {
	runner := &fakeRunner{summary: passSummary()}
	ts, _, _ := newTestServer(t, runner, "")

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/cron", "anything")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, runner.calls)
}

func TestCron_PassStartFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("configuration error: target token not set")}
	ts, _, _ := newTestServer(t, runner, "s3cret")

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/cron", "s3cret")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "target token not set")
}

func TestCron_NoActiveWallets(t *testing.T) {
	runner := &fakeRunner{summary: &domain.PassSummary{PassID: "p"}}
	ts, _, _ := newTestServer(t, runner, "s3cret")

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/cron", "s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No active wallets to process", body["message"])
	assert.EqualValues(t, 0, body["processed"])
}

func TestCron_MethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeRunner{}, "s3cret")

	resp, _ := doRequest(t, http.MethodDelete, ts.URL+"/api/cron", "s3cret")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestActivity_FeedAndLimit(t *testing.T) {
	ts, activity, _ := newTestServer(t, &fakeRunner{}, "s3cret")
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	types := []domain.ActivityType{
		domain.ActivityFeeClaimed,
		domain.ActivityBuyTargetToken,
		domain.ActivityBuySelfTokenFailed,
		domain.ActivityBuySelfToken,
	}
	for i, typ := range types {
		require.NoError(t, activity.Insert(ctx, &domain.ActivityRecord{
			ID:        string(typ),
			WalletID:  "w1",
			Type:      typ,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/activity", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["count"])

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/activity?type=buy", "")
	assert.EqualValues(t, 2, body["count"])
	first := body["activities"].([]any)[0].(map[string]any)
	assert.Equal(t, "buy_self_token", first["activity_type"])

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/activity?type=claim", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/activity?limit=1", "")
	assert.EqualValues(t, 1, body["count"])

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/activity?type=sell", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/activity?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivity_Empty(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeRunner{}, "s3cret")

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/activity", "")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{}, body["activities"])
}

func TestRuns(t *testing.T) {
	ts, _, runs := newTestServer(t, &fakeRunner{}, "s3cret")
	require.NoError(t, runs.InsertPass(context.Background(), passSummary()))

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/runs/pass-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["results"], 2)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndStatus(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeRunner{summary: passSummary()}, "s3cret")

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	last := body["last_pass"].(map[string]any)
	assert.Equal(t, "pass-1", last["pass_id"])
	assert.NotContains(t, last, "results")

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
