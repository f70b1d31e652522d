package models

import "time"

// StakePool is the persisted form of a staking pool.
type StakePool struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	Address             string    `gorm:"size:44;uniqueIndex;not null" json:"address"`
	Authority           string    `gorm:"size:44;not null" json:"authority"`
	StakingMint         string    `gorm:"size:44;uniqueIndex;not null" json:"staking_mint"`
	RewardMint          string    `gorm:"size:44;not null" json:"reward_mint"`
	StakingVault        string    `gorm:"size:44;not null" json:"staking_vault"`
	RewardVault         string    `gorm:"size:44;not null" json:"reward_vault"`
	StakingTokenProgram string    `gorm:"size:44;not null" json:"staking_token_program"`
	RewardRate          U64       `gorm:"not null" json:"reward_rate"`
	LockPeriod          int64     `gorm:"not null" json:"lock_period"`
	MinStakeAmount      U64       `gorm:"not null" json:"min_stake_amount"`
	TotalStaked         U64       `gorm:"not null;default:0" json:"total_staked"`
	LastUpdateTime      int64     `gorm:"not null" json:"last_update_time"`
	Paused              bool      `gorm:"default:false" json:"paused"`
	Bump                uint8     `json:"bump"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StakePool) TableName() string {
	return "stake_pools"
}

// UserStake is one owner's position in a pool.
type UserStake struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	Address             string    `gorm:"size:44;uniqueIndex;not null" json:"address"`
	Owner               string    `gorm:"size:44;not null;index" json:"owner"`
	Pool                string    `gorm:"size:44;not null;index" json:"pool"`
	StakedAmount        U64       `gorm:"not null;default:0" json:"staked_amount"`
	PendingRewards      U64       `gorm:"not null;default:0" json:"pending_rewards"`
	LastStakeTime       int64     `gorm:"not null;default:0" json:"last_stake_time"`
	StakeStartTime      int64     `gorm:"not null;default:0" json:"stake_start_time"`
	TotalRewardsClaimed U64       `gorm:"not null;default:0" json:"total_rewards_claimed"`
	Bump                uint8     `json:"bump"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserStake) TableName() string {
	return "user_stakes"
}
