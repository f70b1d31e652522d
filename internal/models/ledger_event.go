package models

import "time"

// LedgerEvent is the outbox row written in the same transaction as the state
// change it describes. ID is the event sequence number, taken from
// EventSequence so ids commit in order with no gaps.
type LedgerEvent struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	Kind           string     `gorm:"size:32;not null" json:"kind"`
	Pool           string     `gorm:"size:44;not null;index" json:"pool"`
	User           string     `gorm:"size:44" json:"user,omitempty"`
	Amount         U64        `gorm:"default:0" json:"amount"`
	Balance        U64        `gorm:"default:0" json:"balance"`
	StakingMint    string     `gorm:"size:44" json:"staking_mint,omitempty"`
	RewardMint     string     `gorm:"size:44" json:"reward_mint,omitempty"`
	RewardRate     U64        `gorm:"default:0" json:"reward_rate"`
	OldRate        U64        `gorm:"default:0" json:"old_rate"`
	LockPeriod     int64      `gorm:"default:0" json:"lock_period"`
	MinStakeAmount U64        `gorm:"default:0" json:"min_stake_amount"`
	Paused         bool       `gorm:"default:false" json:"paused"`
	Timestamp      int64      `gorm:"not null" json:"timestamp"`
	Published      bool       `gorm:"default:false;index" json:"-"`
	PublishedAt    *time.Time `json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}

// EventSequence holds the last assigned event id. Its row lock is held from
// assignment until commit, which serializes ledger_events inserts.
type EventSequence struct {
	Name    string `gorm:"primaryKey;size:32"`
	LastSeq uint64 `gorm:"not null;default:0"`
}

func (EventSequence) TableName() string {
	return "ledger_event_seq"
}
