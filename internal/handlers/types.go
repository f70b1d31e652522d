package handlers

import (
	"strconv"

	"stakeledger/internal/ledger"
	"stakeledger/internal/models"
)

// PoolResp 质押池响应结构体
type PoolResp struct {
	Address             string `json:"address"`
	Authority           string `json:"authority"`
	StakingMint         string `json:"staking_mint"`
	RewardMint          string `json:"reward_mint"`
	StakingVault        string `json:"staking_vault"`
	RewardVault         string `json:"reward_vault"`
	StakingTokenProgram string `json:"staking_token_program"`
	RewardRate          string `json:"reward_rate"`
	LockPeriod          int64  `json:"lock_period"`
	MinStakeAmount      uint64 `json:"min_stake_amount"`
	TotalStaked         uint64 `json:"total_staked"`
	TotalStakedUI       string `json:"total_staked_ui"`
	LastUpdateTime      int64  `json:"last_update_time"`
	Paused              bool   `json:"paused"`
}

// PositionResp 用户质押仓位响应结构体
type PositionResp struct {
	Address             string `json:"address"`
	Owner               string `json:"owner"`
	Pool                string `json:"pool"`
	StakedAmount        uint64 `json:"staked_amount"`
	StakedAmountUI      string `json:"staked_amount_ui"`
	PendingRewards      uint64 `json:"pending_rewards"`
	LastStakeTime       int64  `json:"last_stake_time"`
	StakeStartTime      int64  `json:"stake_start_time"`
	TotalRewardsClaimed uint64 `json:"total_rewards_claimed"`
}

// PreviewResp 仓位预览, 包含当前可领取奖励与解锁状态
type PreviewResp struct {
	Position           PositionResp `json:"position"`
	Claimable          uint64       `json:"claimable"`
	ClaimableUI        string       `json:"claimable_ui"`
	UnlockTime         int64        `json:"unlock_time"`
	Unlocked           bool         `json:"unlocked"`
	RewardVaultBalance uint64       `json:"reward_vault_balance"`
	Now                int64        `json:"now"`
}

// EventResp 账本事件响应结构体
type EventResp struct {
	Seq            uint64 `json:"seq"`
	Kind           string `json:"kind"`
	Pool           string `json:"pool"`
	User           string `json:"user,omitempty"`
	Amount         uint64 `json:"amount"`
	Balance        uint64 `json:"balance"`
	StakingMint    string `json:"staking_mint,omitempty"`
	RewardMint     string `json:"reward_mint,omitempty"`
	RewardRate     string `json:"reward_rate,omitempty"`
	OldRate        string `json:"old_rate,omitempty"`
	LockPeriod     int64  `json:"lock_period,omitempty"`
	MinStakeAmount uint64 `json:"min_stake_amount,omitempty"`
	Paused         bool   `json:"paused"`
	Timestamp      int64  `json:"timestamp"`
}

// Rates are scaled by 1e18 and can exceed what JSON clients parse exactly,
// so they are rendered as strings.
func rateString(rate uint64) string {
	return strconv.FormatUint(rate, 10)
}

func poolResp(p *models.StakePool, decimals map[string]uint8) PoolResp {
	return PoolResp{
		Address:             p.Address,
		Authority:           p.Authority,
		StakingMint:         p.StakingMint,
		RewardMint:          p.RewardMint,
		StakingVault:        p.StakingVault,
		RewardVault:         p.RewardVault,
		StakingTokenProgram: p.StakingTokenProgram,
		RewardRate:          rateString(uint64(p.RewardRate)),
		LockPeriod:          p.LockPeriod,
		MinStakeAmount:      uint64(p.MinStakeAmount),
		TotalStaked:         uint64(p.TotalStaked),
		TotalStakedUI:       uiAmount(uint64(p.TotalStaked), decimals[p.StakingMint]),
		LastUpdateTime:      p.LastUpdateTime,
		Paused:              p.Paused,
	}
}

func positionResp(p *ledger.Position, stakingDecimals uint8) PositionResp {
	return PositionResp{
		Address:             p.Address.String(),
		Owner:               p.Owner.String(),
		Pool:                p.Pool.String(),
		StakedAmount:        p.StakedAmount,
		StakedAmountUI:      uiAmount(p.StakedAmount, stakingDecimals),
		PendingRewards:      p.PendingRewards,
		LastStakeTime:       p.LastStakeTime,
		StakeStartTime:      p.StakeStartTime,
		TotalRewardsClaimed: p.TotalRewardsClaimed,
	}
}

func positionRespFromModel(p *models.UserStake, stakingDecimals uint8) PositionResp {
	return PositionResp{
		Address:             p.Address,
		Owner:               p.Owner,
		Pool:                p.Pool,
		StakedAmount:        uint64(p.StakedAmount),
		StakedAmountUI:      uiAmount(uint64(p.StakedAmount), stakingDecimals),
		PendingRewards:      uint64(p.PendingRewards),
		LastStakeTime:       p.LastStakeTime,
		StakeStartTime:      p.StakeStartTime,
		TotalRewardsClaimed: uint64(p.TotalRewardsClaimed),
	}
}

func eventResp(ev *models.LedgerEvent) EventResp {
	resp := EventResp{
		Seq:            ev.ID,
		Kind:           ev.Kind,
		Pool:           ev.Pool,
		User:           ev.User,
		Amount:         uint64(ev.Amount),
		Balance:        uint64(ev.Balance),
		StakingMint:    ev.StakingMint,
		RewardMint:     ev.RewardMint,
		LockPeriod:     ev.LockPeriod,
		MinStakeAmount: uint64(ev.MinStakeAmount),
		Paused:         ev.Paused,
		Timestamp:      ev.Timestamp,
	}
	switch ledger.EventKind(ev.Kind) {
	case ledger.EventPoolInitialized:
		resp.RewardRate = rateString(uint64(ev.RewardRate))
	case ledger.EventRewardRateUpdated:
		resp.RewardRate = rateString(uint64(ev.RewardRate))
		resp.OldRate = rateString(uint64(ev.OldRate))
	}
	return resp
}
