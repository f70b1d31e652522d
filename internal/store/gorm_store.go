// Package store persists ledger records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stakeledger/internal/custody"
	"stakeledger/internal/ledger"
	"stakeledger/internal/models"
)

const eventSeqName = "ledger_events"

// GormStore implements ledger.Store on top of a gorm database. Each Atomic
// call is one database transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// RegisterMint mirrors an external mint so pools and accounts can reference it.
func (s *GormStore) RegisterMint(ctx context.Context, mint custody.Mint) (*models.TokenMint, error) {
	row := models.TokenMint{
		Address:  mint.Address.String(),
		Decimals: mint.Decimals,
		Program:  mint.Program.String(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TokenMint{}).Where("address = ?", row.Address).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: mint %s", custody.ErrAccountExists, row.Address)
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RegisterTokenAccount mirrors an external token account with a zero balance.
func (s *GormStore) RegisterTokenAccount(ctx context.Context, account custody.Account) error {
	return s.Atomic(ctx, func(tx ledger.Tx) error {
		if _, err := tx.Mint(ctx, account.Mint); err != nil {
			return err
		}
		account.Amount = 0
		return tx.CreateTokenAccount(ctx, &account)
	})
}

// Credit adds amount to a token account, mirroring a deposit made outside
// the ledger.
func (s *GormStore) Credit(ctx context.Context, address solana.PublicKey, amount uint64) (*custody.Account, error) {
	var out *custody.Account
	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		account, err := tx.TokenAccount(ctx, address)
		if err != nil {
			return err
		}
		if account.Amount+amount < account.Amount {
			return custody.ErrOverflow
		}
		account.Amount += amount
		if err := tx.SaveTokenAccount(ctx, account); err != nil {
			return err
		}
		out = account
		return nil
	})
	return out, err
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Mint(ctx context.Context, address solana.PublicKey) (*custody.Mint, error) {
	var row models.TokenMint
	if err := t.db.Where("address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", custody.ErrMintNotFound, address)
		}
		return nil, err
	}
	return MintFromModel(&row)
}

func (t *gormTx) TokenAccount(ctx context.Context, address solana.PublicKey) (*custody.Account, error) {
	var row models.TokenAccount
	if err := t.db.Where("account_address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", custody.ErrAccountNotFound, address)
		}
		return nil, err
	}
	return AccountFromModel(&row)
}

func (t *gormTx) CreateTokenAccount(ctx context.Context, account *custody.Account) error {
	var count int64
	if err := t.db.Model(&models.TokenAccount{}).Where("account_address = ?", account.Address.String()).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", custody.ErrAccountExists, account.Address)
	}
	row := AccountToModel(account)
	return t.db.Create(&row).Error
}

func (t *gormTx) SaveTokenAccount(ctx context.Context, account *custody.Account) error {
	res := t.db.Model(&models.TokenAccount{}).
		Where("account_address = ?", account.Address.String()).
		Update("amount", models.U64(account.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", custody.ErrAccountNotFound, account.Address)
	}
	return nil
}

func (t *gormTx) Pool(ctx context.Context, address solana.PublicKey) (*ledger.Pool, error) {
	var row models.StakePool
	if err := t.db.Where("address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrPoolNotFound
		}
		return nil, err
	}
	return PoolFromModel(&row)
}

func (t *gormTx) CreatePool(ctx context.Context, pool *ledger.Pool) error {
	var count int64
	if err := t.db.Model(&models.StakePool{}).Where("address = ?", pool.Address.String()).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ledger.ErrAlreadyInitialized
	}
	row := PoolToModel(pool)
	return t.db.Create(&row).Error
}

func (t *gormTx) SavePool(ctx context.Context, pool *ledger.Pool) error {
	// Only mutable fields. A map keeps zero values such as paused=false.
	res := t.db.Model(&models.StakePool{}).
		Where("address = ?", pool.Address.String()).
		Updates(map[string]interface{}{
			"reward_rate":      models.U64(pool.RewardRate),
			"total_staked":     models.U64(pool.TotalStaked),
			"last_update_time": pool.LastUpdateTime,
			"paused":           pool.Paused,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrPoolNotFound
	}
	return nil
}

func (t *gormTx) Position(ctx context.Context, address solana.PublicKey) (*ledger.Position, error) {
	var row models.UserStake
	if err := t.db.Where("address = ?", address.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrPositionNotFound
		}
		return nil, err
	}
	return PositionFromModel(&row)
}

func (t *gormTx) GetOrCreatePosition(ctx context.Context, fresh *ledger.Position) (ledger.PositionLoad, error) {
	pos, err := t.Position(ctx, fresh.Address)
	if err == nil {
		return ledger.PositionLoad{Position: pos}, nil
	}
	if !errors.Is(err, ledger.ErrPositionNotFound) {
		return ledger.PositionLoad{}, err
	}

	row := PositionToModel(fresh)
	if err := t.db.Create(&row).Error; err != nil {
		return ledger.PositionLoad{}, err
	}
	created := *fresh
	return ledger.PositionLoad{Position: &created, Created: true}, nil
}

func (t *gormTx) SavePosition(ctx context.Context, position *ledger.Position) error {
	res := t.db.Model(&models.UserStake{}).
		Where("address = ?", position.Address.String()).
		Updates(map[string]interface{}{
			"staked_amount":         models.U64(position.StakedAmount),
			"pending_rewards":       models.U64(position.PendingRewards),
			"last_stake_time":       position.LastStakeTime,
			"stake_start_time":      position.StakeStartTime,
			"total_rewards_claimed": models.U64(position.TotalRewardsClaimed),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrPositionNotFound
	}
	return nil
}

func (t *gormTx) AppendEvent(ctx context.Context, ev *ledger.Event) error {
	seq, err := t.nextEventSeq()
	if err != nil {
		return fmt.Errorf("assign %s event seq: %w", ev.Kind, err)
	}
	row := EventToModel(ev)
	row.ID = seq
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append %s event: %w", ev.Kind, err)
	}
	ev.Seq = row.ID
	return nil
}

// nextEventSeq bumps the event counter. The UPDATE holds the counter row
// until commit, so a concurrent writer waits and ids commit in order.
func (t *gormTx) nextEventSeq() (uint64, error) {
	for seeded := false; ; seeded = true {
		res := t.db.Model(&models.EventSequence{}).
			Where("name = ?", eventSeqName).
			UpdateColumn("last_seq", gorm.Expr("last_seq + 1"))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected > 0 {
			break
		}
		if seeded {
			return 0, fmt.Errorf("event sequence %q missing", eventSeqName)
		}

		// First event on this database: start after any existing rows.
		var last uint64
		if err := t.db.Model(&models.LedgerEvent{}).Select("COALESCE(MAX(id), 0)").Scan(&last).Error; err != nil {
			return 0, err
		}
		seed := models.EventSequence{Name: eventSeqName, LastSeq: last}
		if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return 0, err
		}
	}

	var seq models.EventSequence
	if err := t.db.Where("name = ?", eventSeqName).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastSeq, nil
}
