package health

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/cyclerunner/pkg/circuitbreaker"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/scheduler"
	"github.com/speedrun-hq/cyclerunner/pkg/testutil"
)

type fakeScheduler struct {
	resetCalls []string
}

func (f *fakeScheduler) State() scheduler.CycleState {
	return scheduler.CycleState{
		CycleID: "3f1c7a52-0d4e-4f0b-9a53-6b1f3ea2c001",
		Number:  2,
		Start:   time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Elapsed: 90 * time.Minute,
		Pass:    4,
	}
}

func (f *fakeScheduler) LastPass() *scheduler.PassReport {
	return &scheduler.PassReport{Cycle: 2, Pass: 3, Succeeded: 3, Failed: 1}
}

func (f *fakeScheduler) Breakers() []circuitbreaker.State {
	return []circuitbreaker.State{{Name: "swap", Enabled: true, Open: true, FailureCount: 5}}
}

func (f *fakeScheduler) ResetBreakers(action string) int {
	f.resetCalls = append(f.resetCalls, action)
	if action == "swap" {
		return 1
	}
	return 0
}

type fakeTransactions struct{}

func (fakeTransactions) PendingCount() int { return 1 }

func (fakeTransactions) Recent() []executor.TransactionRecord {
	return []executor.TransactionRecord{{Label: "swap", Nonce: 9, State: "confirmed"}}
}

type fakeChain struct {
	blockErr error
	balances map[common.Address]*big.Int
}

func (f *fakeChain) GetLatestBlockNumber(context.Context) (uint64, error) {
	if f.blockErr != nil {
		return 0, f.blockErr
	}
	return 4242, nil
}

func (f *fakeChain) ReadBalance(_ context.Context, token, _ common.Address) (*big.Int, error) {
	balance, ok := f.balances[token]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return balance, nil
}

func newTestServer(t *testing.T, apiKey string, chain *fakeChain) (*Server, *fakeScheduler) {
	sched := &fakeScheduler{}
	return NewServer("0", apiKey, Dependencies{
		Scheduler:    sched,
		Transactions: fakeTransactions{},
		Chain:        chain,
		Registry:     testutil.NewRegistry(t),
		Owner:        common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"),
	}, nil), sched
}

func serve(server *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	server, _ := newTestServer(t, "", &fakeChain{})

	rec := serve(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(server, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := newTestServer(t, "", &fakeChain{blockErr: errors.New("connection refused")})
	rec = serve(down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestStatus(t *testing.T) {
	server, _ := newTestServer(t, "", &fakeChain{balances: map[common.Address]*big.Int{
		testutil.ZealAddress:  testutil.CreateBigInt("1500000000000000000"),
		testutil.NachoAddress: big.NewInt(2_500_000),
	}})

	rec := serve(server, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1", status["address"])
	assert.Equal(t, float64(4242), status["latest_block"])
	assert.Equal(t, float64(1), status["pending_transactions"])

	cycle := status["cycle"].(map[string]interface{})
	assert.Equal(t, float64(2), cycle["number"])
	assert.Equal(t, float64(4), cycle["pass"])

	balances := status["token_balances"].(map[string]interface{})
	assert.Equal(t, "1.500000000000000000", balances["test_ZEAL"])
	assert.Equal(t, "2.500000", balances["test_NACHO"])
	assert.NotContains(t, balances, "ZEAL_NACHO_LP")

	breakers := status["circuit_breakers"].([]interface{})
	require.Len(t, breakers, 1)
	assert.Equal(t, true, breakers[0].(map[string]interface{})["open"])
}

func TestCircuitReset(t *testing.T) {
	server, sched := newTestServer(t, "", &fakeChain{})

	rec := serve(server, http.MethodGet, "/circuit/reset?action=swap", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(server, http.MethodPost, "/circuit/reset", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(server, http.MethodPost, "/circuit/reset?action=bridge", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(server, http.MethodPost, "/circuit/reset?action=swap", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bridge", "swap"}, sched.resetCalls)
}

func TestMetricsAuth(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		header   map[string]string
		wantCode int
	}{
		{"no key configured", "", nil, http.StatusOK},
		{"missing header", "secret", nil, http.StatusUnauthorized},
		{"wrong scheme", "secret", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"wrong key", "secret", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid key", "secret", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.apiKey, &fakeChain{})
			rec := serve(server, http.MethodGet, "/metrics", tt.header)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	server, _ := newTestServer(t, "", &fakeChain{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
