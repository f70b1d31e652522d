package models

import "time"

// TokenMint mirrors a mint known to custody.
type TokenMint struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Address   string    `gorm:"size:44;uniqueIndex;not null" json:"address"`
	Decimals  uint8     `gorm:"not null" json:"decimals"`
	Program   string    `gorm:"size:44;not null" json:"program"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TokenMint) TableName() string {
	return "token_mint"
}

type TokenAccount struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerAddress   string    `gorm:"size:44;not null;index" json:"owner_address"`
	Mint           string    `gorm:"size:44;not null" json:"mint"`
	AccountAddress string    `gorm:"size:44;uniqueIndex;not null" json:"account_address"`
	Amount         U64       `gorm:"not null;default:0" json:"amount"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_account"
}
