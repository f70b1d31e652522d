package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeledger/internal/custody"
	"stakeledger/internal/handlers"
	"stakeledger/internal/ledger"
	"stakeledger/internal/middleware"
	"stakeledger/internal/models"
	"stakeledger/internal/store"
	"stakeledger/internal/store/storetest"
	dbconfig "stakeledger/pkg/config"
	mcsolana "stakeledger/pkg/solana"
)

const operatorToken = "test-operator-token"

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
	Name  string `json:"name"`
}

type api struct {
	t   *testing.T
	r   *gin.Engine
	now int64
}

func newAPI(t *testing.T) *api {
	gin.SetMode(gin.TestMode)
	db := storetest.OpenDB(t)
	dbconfig.DB = db

	a := &api{t: t, now: 1_700_000_000}
	l := ledger.New(store.NewGormStore(db), ledger.WithClock(func() int64 { return a.now }))
	handlers.Setup(l, store.NewGormStore(db))

	a.r = SetupRouter(Options{
		OperatorToken: operatorToken,
		Signature: middleware.SignatureConfig{
			MaxAge: time.Minute,
			Now:    func() time.Time { return time.Unix(a.now, 0) },
		},
		RateLimit: middleware.RateLimiterConfig{RequestsPerSecond: 1000, Burst: 1000},
	})
	return a
}

func (a *api) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *api) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *api) operator(path string, body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(a.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+operatorToken)
	return a.do(req)
}

func (a *api) signed(key solana.PrivateKey, method, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	fields := map[string]interface{}{"expires_at": a.now + 30}
	for k, v := range body {
		fields[k] = v
	}
	raw, err := json.Marshal(fields)
	require.NoError(a.t, err)
	sig, err := key.Sign(middleware.SignedMessage(method, path, raw))
	require.NoError(a.t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(middleware.HeaderSigner, key.PublicKey().String())
	req.Header.Set(middleware.HeaderSignature, sig.String())
	return a.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func requireLedgerError(t *testing.T, w *httptest.ResponseRecorder, status int, want *ledger.Error) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, want.Code, body.Code)
	assert.Equal(t, want.Name, body.Name)
}

// stakingWorld is a pool with a funded staker, built through the HTTP API.
type stakingWorld struct {
	*api
	authority, user, funder solana.PrivateKey
	stakingMint, rewardMint solana.PublicKey
	userTokens, userRewards solana.PublicKey
	funderTokens            solana.PublicKey
	pool                    solana.PublicKey
}

func newStakingWorld(t *testing.T) *stakingWorld {
	w := &stakingWorld{
		api:          newAPI(t),
		authority:    solana.NewWallet().PrivateKey,
		user:         solana.NewWallet().PrivateKey,
		funder:       solana.NewWallet().PrivateKey,
		stakingMint:  solana.NewWallet().PublicKey(),
		rewardMint:   solana.NewWallet().PublicKey(),
		userTokens:   solana.NewWallet().PublicKey(),
		userRewards:  solana.NewWallet().PublicKey(),
		funderTokens: solana.NewWallet().PublicKey(),
	}

	for _, mint := range []solana.PublicKey{w.stakingMint, w.rewardMint} {
		resp := w.operator("/mints", gin.H{"address": mint.String(), "decimals": 6, "program": custody.TokenProgramID.String()})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
	accounts := []struct {
		address, mint solana.PublicKey
		owner         solana.PrivateKey
	}{
		{w.userTokens, w.stakingMint, w.user},
		{w.userRewards, w.rewardMint, w.user},
		{w.funderTokens, w.rewardMint, w.funder},
	}
	for _, acc := range accounts {
		resp := w.operator("/token-accounts", gin.H{
			"account_address": acc.address.String(),
			"mint":            acc.mint.String(),
			"owner_address":   acc.owner.PublicKey().String(),
		})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
	resp := w.operator("/token-accounts/"+w.userTokens.String()+"/credit", gin.H{"amount": 1000})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	resp = w.operator("/token-accounts/"+w.funderTokens.String()+"/credit", gin.H{"amount": 10_000})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = w.signed(w.authority, http.MethodPost, "/pools", map[string]interface{}{
		"staking_mint":     w.stakingMint.String(),
		"reward_mint":      w.rewardMint.String(),
		"reward_rate":      ledger.RewardScale / 10,
		"lock_period":      60,
		"min_stake_amount": 10,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var ev handlers.EventResp
	decode(t, resp, &ev)
	assert.Equal(t, string(ledger.EventPoolInitialized), ev.Kind)

	pda, err := mcsolana.GetPoolPDA(mcsolana.DefaultStakingProgramID, w.stakingMint)
	require.NoError(t, err)
	w.pool = pda.Address
	assert.Equal(t, w.pool.String(), ev.Pool)
	return w
}

func (w *stakingWorld) poolPath(suffix string) string {
	return "/pools/" + w.pool.String() + suffix
}

func (w *stakingWorld) balance(address solana.PublicKey) handlers.TokenAccountResp {
	resp := w.get("/token-accounts/" + address.String())
	require.Equal(w.t, http.StatusOK, resp.Code, resp.Body.String())
	var out handlers.TokenAccountResp
	decode(w.t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	w := a.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.get("/health")
	w := a.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stakeledger_api_requests_total")
}

func TestCORS(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, http://example.test")
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/pools", nil)
	req.Header.Set("Origin", "http://example.test")
	w := a.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://example.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Signature")

	req = httptest.NewRequest(http.MethodOptions, "/pools", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = a.do(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStakingFlow(t *testing.T) {
	w := newStakingWorld(t)

	resp := w.signed(w.funder, http.MethodPost, w.poolPath("/fund"), map[string]interface{}{
		"amount": 5000, "token_account": w.funderTokens.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 100, "token_account": w.userTokens.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var ev handlers.EventResp
	decode(t, resp, &ev)
	assert.Equal(t, string(ledger.EventStake), ev.Kind)
	assert.Equal(t, uint64(100), ev.Amount)
	assert.Equal(t, w.user.PublicKey().String(), ev.User)
	assert.Equal(t, uint64(900), w.balance(w.userTokens).Amount)

	w.now += 30
	resp = w.get(w.poolPath("/positions/" + w.user.PublicKey().String()))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var preview handlers.PreviewResp
	decode(t, resp, &preview)
	assert.Equal(t, uint64(300), preview.Claimable)
	assert.Equal(t, "0.0003", preview.ClaimableUI)
	assert.Equal(t, int64(1_700_000_060), preview.UnlockTime)
	assert.False(t, preview.Unlocked)
	assert.Equal(t, uint64(5000), preview.RewardVaultBalance)
	assert.Equal(t, "0.0001", preview.Position.StakedAmountUI)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/unstake"), map[string]interface{}{
		"amount": 100, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusConflict, ledger.ErrStillLocked)

	w.now += 31
	resp = w.signed(w.user, http.MethodPost, w.poolPath("/claim"), map[string]interface{}{
		"reward_account": w.userRewards.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decode(t, resp, &ev)
	assert.Equal(t, string(ledger.EventClaim), ev.Kind)
	assert.Equal(t, uint64(610), ev.Amount)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/unstake"), map[string]interface{}{
		"amount": 100, "token_account": w.userTokens.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	userTokens := w.balance(w.userTokens)
	assert.Equal(t, uint64(1000), userTokens.Amount)
	assert.Equal(t, "0.001", userTokens.AmountUI)
	assert.Equal(t, uint64(610), w.balance(w.userRewards).Amount)

	resp = w.get(w.poolPath(""))
	require.Equal(t, http.StatusOK, resp.Code)
	var pool handlers.PoolResp
	decode(t, resp, &pool)
	assert.Equal(t, uint64(0), pool.TotalStaked)
	assert.Equal(t, "0", pool.TotalStakedUI)
	assert.Equal(t, "100000000000000000", pool.RewardRate)
	assert.Equal(t, w.authority.PublicKey().String(), pool.Authority)

	resp = w.get("/events")
	require.Equal(t, http.StatusOK, resp.Code)
	var events []handlers.EventResp
	decode(t, resp, &events)
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		string(ledger.EventPoolInitialized),
		string(ledger.EventRewardsFunded),
		string(ledger.EventStake),
		string(ledger.EventClaim),
		string(ledger.EventUnstake),
	}, kinds)

	resp = w.get(fmt.Sprintf("/events?after=%d&limit=2", events[1].Seq))
	require.Equal(t, http.StatusOK, resp.Code)
	var page []handlers.EventResp
	decode(t, resp, &page)
	require.Len(t, page, 2)
	assert.Equal(t, events[2].Seq, page[0].Seq)
	assert.Equal(t, events[3].Seq, page[1].Seq)
}

func TestPoolReads(t *testing.T) {
	w := newStakingWorld(t)
	resp := w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 250, "token_account": w.userTokens.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = w.get("/pools")
	require.Equal(t, http.StatusOK, resp.Code)
	var pools []handlers.PoolResp
	decode(t, resp, &pools)
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(250), pools[0].TotalStaked)
	assert.Equal(t, "0.00025", pools[0].TotalStakedUI)

	resp = w.get(w.poolPath("/positions"))
	require.Equal(t, http.StatusOK, resp.Code)
	var positions []handlers.PositionResp
	decode(t, resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, w.user.PublicKey().String(), positions[0].Owner)
	assert.Equal(t, w.now, positions[0].StakeStartTime)

	require.NoError(t, dbconfig.DB.Create(&models.PoolSnapshot{
		PoolAddress: w.pool.String(),
		TotalStaked: 250,
		TakenAt:     time.Unix(w.now, 0).UTC(),
	}).Error)
	resp = w.get(w.poolPath("/snapshots"))
	require.Equal(t, http.StatusOK, resp.Code)
	var snapshots []models.PoolSnapshot
	decode(t, resp, &snapshots)
	require.Len(t, snapshots, 1)
	assert.Equal(t, models.U64(250), snapshots[0].TotalStaked)

	resp = w.get(w.poolPath("/stats"))
	require.Equal(t, http.StatusOK, resp.Code)
	var stat models.PoolActivityStat
	decode(t, resp, &stat)
	assert.Equal(t, w.pool.String(), stat.PoolAddress)
	assert.Zero(t, stat.StakeCount)

	assert.Equal(t, http.StatusNotFound, w.get("/pools/"+solana.NewWallet().PublicKey().String()).Code)
	assert.Equal(t, http.StatusBadRequest, w.get("/pools/not-a-key").Code)
	assert.Equal(t, http.StatusBadRequest, w.get(w.poolPath("/positions?limit=-1")).Code)

	resp = w.get(w.poolPath("/positions/" + solana.NewWallet().PublicKey().String()))
	requireLedgerError(t, resp, http.StatusNotFound, ledger.ErrPositionNotFound)
}

func TestAuthorityOperations(t *testing.T) {
	w := newStakingWorld(t)

	resp := w.signed(w.user, http.MethodPut, w.poolPath("/paused"), map[string]interface{}{"paused": true})
	requireLedgerError(t, resp, http.StatusForbidden, ledger.ErrUnauthorized)

	resp = w.signed(w.authority, http.MethodPut, w.poolPath("/paused"), map[string]interface{}{"paused": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var ev handlers.EventResp
	decode(t, resp, &ev)
	assert.Equal(t, string(ledger.EventPoolPaused), ev.Kind)
	assert.True(t, ev.Paused)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 50, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusConflict, ledger.ErrPoolPaused)
	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 0, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusBadRequest, ledger.ErrInvalidAmount)

	resp = w.signed(w.authority, http.MethodPut, w.poolPath("/paused"), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	w.now++
	resp = w.signed(w.authority, http.MethodPut, w.poolPath("/reward-rate"), map[string]interface{}{"new_rate": 42})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decode(t, resp, &ev)
	assert.Equal(t, string(ledger.EventRewardRateUpdated), ev.Kind)
	assert.Equal(t, "42", ev.RewardRate)
	assert.Equal(t, "100000000000000000", ev.OldRate)

	resp = w.signed(w.user, http.MethodPut, w.poolPath("/reward-rate"), map[string]interface{}{"new_rate": 1})
	requireLedgerError(t, resp, http.StatusForbidden, ledger.ErrUnauthorized)
}

func TestStakeValidationErrors(t *testing.T) {
	w := newStakingWorld(t)

	resp := w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 0, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusBadRequest, ledger.ErrInvalidAmount)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 5, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusBadRequest, ledger.ErrBelowMinimumStake)

	resp = w.signed(w.funder, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 50, "token_account": w.userTokens.String(),
	})
	requireLedgerError(t, resp, http.StatusForbidden, ledger.ErrInvalidOwner)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 50, "token_account": w.userRewards.String(),
	})
	requireLedgerError(t, resp, http.StatusForbidden, ledger.ErrInvalidMint)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 50, "token_account": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = w.signed(w.user, http.MethodPost, w.poolPath("/claim"), map[string]interface{}{
		"reward_account": w.userRewards.String(),
	})
	requireLedgerError(t, resp, http.StatusNotFound, ledger.ErrPositionNotFound)

	resp = w.signed(w.authority, http.MethodPost, "/pools", map[string]interface{}{
		"staking_mint": w.stakingMint.String(),
		"reward_mint":  w.rewardMint.String(),
	})
	requireLedgerError(t, resp, http.StatusConflict, ledger.ErrAlreadyInitialized)
}

func TestSignedRoutesRejectBadRequests(t *testing.T) {
	w := newStakingWorld(t)
	path := w.poolPath("/stake")
	body := map[string]interface{}{"amount": 50, "token_account": w.userTokens.String()}

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":50}`))
	assert.Equal(t, http.StatusUnauthorized, w.do(req).Code)

	first := w.signed(w.user, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	replay := w.signed(w.user, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, replay.Code)

	// A signature for stake cannot be replayed against unstake.
	raw, err := json.Marshal(map[string]interface{}{"amount": 50, "token_account": w.userTokens.String(), "expires_at": w.now + 10})
	require.NoError(t, err)
	sig, err := w.user.Sign(middleware.SignedMessage(http.MethodPost, path, raw))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, w.poolPath("/unstake"), bytes.NewReader(raw))
	req.Header.Set(middleware.HeaderSigner, w.user.PublicKey().String())
	req.Header.Set(middleware.HeaderSignature, sig.String())
	assert.Equal(t, http.StatusUnauthorized, w.do(req).Code)
}

func TestOperatorRoutes(t *testing.T) {
	a := newAPI(t)
	mint := solana.NewWallet().PublicKey()

	req := httptest.NewRequest(http.MethodPost, "/mints", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusUnauthorized, a.do(req).Code)
	req = httptest.NewRequest(http.MethodPost, "/mints", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, a.do(req).Code)

	resp := a.operator("/mints", gin.H{"address": mint.String(), "decimals": 9, "program": solana.NewWallet().PublicKey().String()})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = a.operator("/mints", gin.H{"address": mint.String(), "decimals": 9, "program": custody.Token2022ProgramID.String()})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	resp = a.operator("/mints", gin.H{"address": mint.String(), "decimals": 9, "program": custody.Token2022ProgramID.String()})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = a.operator("/token-accounts", gin.H{
		"account_address": solana.NewWallet().PublicKey().String(),
		"mint":            solana.NewWallet().PublicKey().String(),
		"owner_address":   solana.NewWallet().PublicKey().String(),
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = a.operator("/token-accounts/"+solana.NewWallet().PublicKey().String()+"/credit", gin.H{"amount": 5})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, http.StatusNotFound, a.get("/token-accounts/"+solana.NewWallet().PublicKey().String()).Code)
}

func TestOperatorRoutesDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dbconfig.DB = storetest.OpenDB(t)
	r := SetupRouter(Options{})

	req := httptest.NewRequest(http.MethodPost, "/mints", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStreamEvents(t *testing.T) {
	w := newStakingWorld(t)
	handlers.StreamPollInterval = 10 * time.Millisecond
	t.Cleanup(func() { handlers.StreamPollInterval = time.Second })

	server := httptest.NewServer(w.r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/events/ws?pool=" + w.pool.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ev handlers.EventResp
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, string(ledger.EventPoolInitialized), ev.Kind)

	resp := w.signed(w.user, http.MethodPost, w.poolPath("/stake"), map[string]interface{}{
		"amount": 100, "token_account": w.userTokens.String(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, string(ledger.EventStake), ev.Kind)
	assert.Equal(t, uint64(100), ev.Amount)
}

func TestStreamEventsRejectsBadCursor(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusBadRequest, a.get("/events/ws?after=x").Code)
	assert.Equal(t, http.StatusBadRequest, a.get("/events?pool=x").Code)
}
