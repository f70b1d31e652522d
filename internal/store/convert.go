package store

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"stakeledger/internal/custody"
	"stakeledger/internal/ledger"
	"stakeledger/internal/models"
)

// keyParser decodes base58 columns and keeps the first error. An empty
// column decodes to the zero key.
type keyParser struct {
	err error
}

func (kp *keyParser) key(src string) solana.PublicKey {
	if src == "" || kp.err != nil {
		return solana.PublicKey{}
	}
	key, err := solana.PublicKeyFromBase58(src)
	if err != nil {
		kp.err = fmt.Errorf("invalid address %q: %w", src, err)
	}
	return key
}

func keyString(key solana.PublicKey) string {
	if key.IsZero() {
		return ""
	}
	return key.String()
}

func MintFromModel(row *models.TokenMint) (*custody.Mint, error) {
	var kp keyParser
	m := &custody.Mint{
		Address:  kp.key(row.Address),
		Decimals: row.Decimals,
		Program:  kp.key(row.Program),
	}
	return m, kp.err
}

func AccountFromModel(row *models.TokenAccount) (*custody.Account, error) {
	var kp keyParser
	a := &custody.Account{
		Address: kp.key(row.AccountAddress),
		Mint:    kp.key(row.Mint),
		Owner:   kp.key(row.OwnerAddress),
		Amount:  uint64(row.Amount),
	}
	return a, kp.err
}

func AccountToModel(a *custody.Account) models.TokenAccount {
	return models.TokenAccount{
		AccountAddress: a.Address.String(),
		Mint:           a.Mint.String(),
		OwnerAddress:   a.Owner.String(),
		Amount:         models.U64(a.Amount),
	}
}

func PoolFromModel(row *models.StakePool) (*ledger.Pool, error) {
	var kp keyParser
	p := &ledger.Pool{
		Address:             kp.key(row.Address),
		Authority:           kp.key(row.Authority),
		StakingMint:         kp.key(row.StakingMint),
		RewardMint:          kp.key(row.RewardMint),
		StakingVault:        kp.key(row.StakingVault),
		RewardVault:         kp.key(row.RewardVault),
		StakingTokenProgram: kp.key(row.StakingTokenProgram),
		RewardRate:          uint64(row.RewardRate),
		LockPeriod:          row.LockPeriod,
		MinStakeAmount:      uint64(row.MinStakeAmount),
		TotalStaked:         uint64(row.TotalStaked),
		LastUpdateTime:      row.LastUpdateTime,
		Paused:              row.Paused,
		Bump:                row.Bump,
	}
	return p, kp.err
}

func PoolToModel(p *ledger.Pool) models.StakePool {
	return models.StakePool{
		Address:             p.Address.String(),
		Authority:           p.Authority.String(),
		StakingMint:         p.StakingMint.String(),
		RewardMint:          p.RewardMint.String(),
		StakingVault:        p.StakingVault.String(),
		RewardVault:         p.RewardVault.String(),
		StakingTokenProgram: p.StakingTokenProgram.String(),
		RewardRate:          models.U64(p.RewardRate),
		LockPeriod:          p.LockPeriod,
		MinStakeAmount:      models.U64(p.MinStakeAmount),
		TotalStaked:         models.U64(p.TotalStaked),
		LastUpdateTime:      p.LastUpdateTime,
		Paused:              p.Paused,
		Bump:                p.Bump,
	}
}

func PositionFromModel(row *models.UserStake) (*ledger.Position, error) {
	var kp keyParser
	p := &ledger.Position{
		Address:             kp.key(row.Address),
		Owner:               kp.key(row.Owner),
		Pool:                kp.key(row.Pool),
		StakedAmount:        uint64(row.StakedAmount),
		PendingRewards:      uint64(row.PendingRewards),
		LastStakeTime:       row.LastStakeTime,
		StakeStartTime:      row.StakeStartTime,
		TotalRewardsClaimed: uint64(row.TotalRewardsClaimed),
		Bump:                row.Bump,
	}
	return p, kp.err
}

func PositionToModel(p *ledger.Position) models.UserStake {
	return models.UserStake{
		Address:             p.Address.String(),
		Owner:               p.Owner.String(),
		Pool:                p.Pool.String(),
		StakedAmount:        models.U64(p.StakedAmount),
		PendingRewards:      models.U64(p.PendingRewards),
		LastStakeTime:       p.LastStakeTime,
		StakeStartTime:      p.StakeStartTime,
		TotalRewardsClaimed: models.U64(p.TotalRewardsClaimed),
		Bump:                p.Bump,
	}
}

func EventToModel(ev *ledger.Event) models.LedgerEvent {
	return models.LedgerEvent{
		ID:             ev.Seq,
		Kind:           string(ev.Kind),
		Pool:           ev.Pool.String(),
		User:           keyString(ev.User),
		Amount:         models.U64(ev.Amount),
		Balance:        models.U64(ev.Balance),
		StakingMint:    keyString(ev.StakingMint),
		RewardMint:     keyString(ev.RewardMint),
		RewardRate:     models.U64(ev.RewardRate),
		OldRate:        models.U64(ev.OldRate),
		LockPeriod:     ev.LockPeriod,
		MinStakeAmount: models.U64(ev.MinStakeAmount),
		Paused:         ev.Paused,
		Timestamp:      ev.Timestamp,
	}
}

func EventFromModel(row *models.LedgerEvent) (*ledger.Event, error) {
	var kp keyParser
	ev := &ledger.Event{
		Seq:            row.ID,
		Kind:           ledger.EventKind(row.Kind),
		Pool:           kp.key(row.Pool),
		User:           kp.key(row.User),
		StakingMint:    kp.key(row.StakingMint),
		RewardMint:     kp.key(row.RewardMint),
		Amount:         uint64(row.Amount),
		Balance:        uint64(row.Balance),
		RewardRate:     uint64(row.RewardRate),
		OldRate:        uint64(row.OldRate),
		LockPeriod:     row.LockPeriod,
		MinStakeAmount: uint64(row.MinStakeAmount),
		Paused:         row.Paused,
		Timestamp:      row.Timestamp,
	}
	return ev, kp.err
}
