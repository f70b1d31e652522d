package models

import "time"

// PoolActivityStat accumulates indexed ledger events per pool.
type PoolActivityStat struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	PoolAddress         string    `gorm:"size:44;uniqueIndex;not null" json:"pool_address"`
	StakeCount          int64     `json:"stake_count"`
	UnstakeCount        int64     `json:"unstake_count"`
	ClaimCount          int64     `json:"claim_count"`
	FundCount           int64     `json:"fund_count"`
	TotalStakedVolume   U64       `gorm:"default:0" json:"total_staked_volume"`
	TotalUnstakedVolume U64       `gorm:"default:0" json:"total_unstaked_volume"`
	TotalClaimed        U64       `gorm:"default:0" json:"total_claimed"`
	TotalFunded         U64       `gorm:"default:0" json:"total_funded"`
	LastEventSeq        uint64    `gorm:"default:0" json:"last_event_seq"`
	LastEventAt         int64     `json:"last_event_at"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PoolActivityStat) TableName() string {
	return "pool_activity_stats"
}
