package models

import "time"

// PoolSnapshot is a point-in-time copy of a pool's aggregates, taken by the
// scheduler.
type PoolSnapshot struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	PoolAddress        string    `gorm:"size:44;not null;index" json:"pool_address"`
	TotalStaked        U64       `json:"total_staked"`
	RewardRate         U64       `json:"reward_rate"`
	RewardVaultBalance U64       `json:"reward_vault_balance"`
	StakerCount        int64     `json:"staker_count"`
	Paused             bool      `json:"paused"`
	TakenAt            time.Time `gorm:"index" json:"taken_at"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PoolSnapshot) TableName() string {
	return "pool_snapshots"
}
