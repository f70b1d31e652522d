package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"stakeledger/internal/ledger"
	"stakeledger/internal/store"
)

// Every body below is signed and carries expires_at, which RequireSignature
// has already checked. Amounts are raw token units.

type InitializePoolRequest struct {
	StakingMint    string `json:"staking_mint" binding:"required"`
	RewardMint     string `json:"reward_mint" binding:"required"`
	RewardRate     uint64 `json:"reward_rate"`
	LockPeriod     int64  `json:"lock_period"`
	MinStakeAmount uint64 `json:"min_stake_amount"`
}

type TransferRequest struct {
	Amount       uint64 `json:"amount"`
	TokenAccount string `json:"token_account" binding:"required"`
}

type ClaimRewardsRequest struct {
	RewardAccount string `json:"reward_account" binding:"required"`
}

type UpdateRewardRateRequest struct {
	NewRate uint64 `json:"new_rate"`
}

type SetPausedRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// bindSigned decodes the body and resolves the signer and pool address.
// withPool is false for routes without an :address parameter.
func bindSigned(c *gin.Context, req interface{}, withPool bool) (signerKey, pool solana.PublicKey, ok bool) {
	if signerKey, ok = signer(c); !ok {
		return
	}
	if withPool {
		if pool, ok = paramKey(c, "address"); !ok {
			return
		}
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return signerKey, pool, false
	}
	return signerKey, pool, true
}

func bodyKey(c *gin.Context, field, value string) (solana.PublicKey, bool) {
	key, err := parseKey(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field + ": " + err.Error()})
		return solana.PublicKey{}, false
	}
	return key, true
}

func respondEvent(c *gin.Context, status int, ev *ledger.Event) {
	row := store.EventToModel(ev)
	c.JSON(status, eventResp(&row))
}

// InitializePool creates a pool for a staking mint. The signer becomes the
// pool authority.
func InitializePool(c *gin.Context) {
	var req InitializePoolRequest
	authority, _, ok := bindSigned(c, &req, false)
	if !ok {
		return
	}
	stakingMint, ok := bodyKey(c, "staking_mint", req.StakingMint)
	if !ok {
		return
	}
	rewardMint, ok := bodyKey(c, "reward_mint", req.RewardMint)
	if !ok {
		return
	}

	ev, err := stakingLedger.InitializePool(c.Request.Context(), ledger.InitializePoolRequest{
		Authority:      authority,
		StakingMint:    stakingMint,
		RewardMint:     rewardMint,
		RewardRate:     req.RewardRate,
		LockPeriod:     req.LockPeriod,
		MinStakeAmount: req.MinStakeAmount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusCreated, ev)
}

// Stake deposits staking tokens from the signer's token account
func Stake(c *gin.Context) {
	var req TransferRequest
	user, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}
	account, ok := bodyKey(c, "token_account", req.TokenAccount)
	if !ok {
		return
	}

	ev, err := stakingLedger.Stake(c.Request.Context(), ledger.StakeRequest{
		Pool:             pool,
		User:             user,
		UserTokenAccount: account,
		Amount:           req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}

// Unstake withdraws staking tokens to the signer's token account
func Unstake(c *gin.Context) {
	var req TransferRequest
	user, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}
	account, ok := bodyKey(c, "token_account", req.TokenAccount)
	if !ok {
		return
	}

	ev, err := stakingLedger.Unstake(c.Request.Context(), ledger.UnstakeRequest{
		Pool:             pool,
		User:             user,
		UserTokenAccount: account,
		Amount:           req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}

// ClaimRewards pays out every accrued reward of the signer's position
func ClaimRewards(c *gin.Context) {
	var req ClaimRewardsRequest
	user, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}
	account, ok := bodyKey(c, "reward_account", req.RewardAccount)
	if !ok {
		return
	}

	ev, err := stakingLedger.ClaimRewards(c.Request.Context(), ledger.ClaimRequest{
		Pool:              pool,
		User:              user,
		UserRewardAccount: account,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}

// FundRewards tops up the reward vault. Any signer may fund.
func FundRewards(c *gin.Context) {
	var req TransferRequest
	funder, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}
	account, ok := bodyKey(c, "token_account", req.TokenAccount)
	if !ok {
		return
	}

	ev, err := stakingLedger.FundRewards(c.Request.Context(), ledger.FundRewardsRequest{
		Pool:               pool,
		Funder:             funder,
		FunderTokenAccount: account,
		Amount:             req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}

// UpdateRewardRate changes the pool rate; only the pool authority may call it
func UpdateRewardRate(c *gin.Context) {
	var req UpdateRewardRateRequest
	authority, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}

	ev, err := stakingLedger.UpdateRewardRate(c.Request.Context(), ledger.UpdateRewardRateRequest{
		Pool:      pool,
		Authority: authority,
		NewRate:   req.NewRate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}

// SetPaused pauses or resumes deposits; only the pool authority may call it
func SetPaused(c *gin.Context) {
	var req SetPausedRequest
	authority, pool, ok := bindSigned(c, &req, true)
	if !ok {
		return
	}

	ev, err := stakingLedger.SetPaused(c.Request.Context(), ledger.SetPausedRequest{
		Pool:      pool,
		Authority: authority,
		Paused:    *req.Paused,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondEvent(c, http.StatusOK, ev)
}
