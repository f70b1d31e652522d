// Package ledger implements the staking state machine: pools, positions,
// reward accrual and the operations that move value between them.
//
// Every operation loads its records, validates preconditions, settles any
// reward owed since the position's checkpoint, moves tokens through custody
// and appends an event, all inside one Store.Atomic call. Errors abort the
// whole operation.
//
// Rate changes are applied at settlement time to the whole interval since a
// position's checkpoint, including the part that elapsed under the previous
// rate. Intervals are not prorated across a change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"stakeledger/internal/custody"
	mcsolana "stakeledger/pkg/solana"
)

// Clock returns the current unix time in seconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 {
	return time.Now().Unix()
}

// Recorder observes every operation once it has finished.
type Recorder interface {
	Observe(op string, err error, elapsed time.Duration)
}

type Option func(*Ledger)

func WithClock(clock Clock) Option {
	return func(l *Ledger) { l.clock = clock }
}

func WithProgramID(id solana.PublicKey) Option {
	return func(l *Ledger) { l.programID = id }
}

func WithPrograms(programs *custody.Registry) Option {
	return func(l *Ledger) { l.programs = programs }
}

func WithLocks(locks *Locks) Option {
	return func(l *Ledger) { l.locks = locks }
}

func WithRecorder(recorder Recorder) Option {
	return func(l *Ledger) { l.recorder = recorder }
}

// Ledger applies staking operations to a Store.
type Ledger struct {
	store     Store
	programs  *custody.Registry
	locks     *Locks
	clock     Clock
	programID solana.PublicKey
	recorder  Recorder
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		programs:  custody.DefaultRegistry(),
		locks:     NewLocks(),
		clock:     SystemClock,
		programID: mcsolana.DefaultStakingProgramID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ProgramID is the id all record addresses are derived from.
func (l *Ledger) ProgramID() solana.PublicKey {
	return l.programID
}

// InitializePool creates the pool for req.StakingMint and both of its vaults.
func (l *Ledger) InitializePool(ctx context.Context, req InitializePoolRequest) (*Event, error) {
	addrs, err := mcsolana.GetPoolAddresses(l.programID, req.StakingMint)
	if err != nil {
		return nil, err
	}

	var ev *Event
	fields := log.Fields{"pool": addrs.Pool.Address.String(), "authority": req.Authority.String()}
	writable := []solana.PublicKey{addrs.Pool.Address, addrs.StakingVault.Address, addrs.RewardVault.Address}
	err = l.run(ctx, "initialize_pool", fields, writable, func(tx Tx, now int64) error {
		stakingMint, err := tx.Mint(ctx, req.StakingMint)
		if err != nil {
			return custodyError(err)
		}
		rewardMint, err := tx.Mint(ctx, req.RewardMint)
		if err != nil {
			return custodyError(err)
		}
		// Rewards are always paid through the classic token program.
		if !rewardMint.Program.Equals(custody.TokenProgramID) {
			return ErrInvalidMint
		}
		if _, err := l.programs.Lookup(stakingMint.Program); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMint, err)
		}

		pool := &Pool{
			Address:             addrs.Pool.Address,
			Authority:           req.Authority,
			StakingMint:         stakingMint.Address,
			RewardMint:          rewardMint.Address,
			StakingVault:        addrs.StakingVault.Address,
			RewardVault:         addrs.RewardVault.Address,
			StakingTokenProgram: stakingMint.Program,
			RewardRate:          req.RewardRate,
			LockPeriod:          req.LockPeriod,
			MinStakeAmount:      req.MinStakeAmount,
			LastUpdateTime:      now,
			Bump:                addrs.Pool.Bump,
		}
		if err := tx.CreatePool(ctx, pool); err != nil {
			return err
		}

		vaults := []*custody.Account{
			{Address: pool.StakingVault, Mint: pool.StakingMint, Owner: pool.Address},
			{Address: pool.RewardVault, Mint: pool.RewardMint, Owner: pool.Address},
		}
		for _, vault := range vaults {
			if err := tx.CreateTokenAccount(ctx, vault); err != nil {
				if errors.Is(err, custody.ErrAccountExists) {
					return fmt.Errorf("%w: %w", ErrAlreadyInitialized, err)
				}
				return err
			}
		}

		ev = &Event{
			Kind:           EventPoolInitialized,
			Pool:           pool.Address,
			StakingMint:    pool.StakingMint,
			RewardMint:     pool.RewardMint,
			RewardRate:     pool.RewardRate,
			LockPeriod:     pool.LockPeriod,
			MinStakeAmount: pool.MinStakeAmount,
			Timestamp:      now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Stake deposits req.Amount of the staking token into the pool.
func (l *Ledger) Stake(ctx context.Context, req StakeRequest) (*Event, error) {
	position, err := mcsolana.GetUserStakePDA(l.programID, req.Pool, req.User)
	if err != nil {
		return nil, err
	}
	vault, err := mcsolana.GetPoolVaultPDA(l.programID, req.Pool)
	if err != nil {
		return nil, err
	}

	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "user": req.User.String(), "amount": req.Amount}
	writable := []solana.PublicKey{req.Pool, position.Address, vault.Address, req.UserTokenAccount}
	err = l.run(ctx, "stake", fields, writable, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		if _, err := tokenAccount(ctx, tx, req.UserTokenAccount, req.User, pool.StakingMint); err != nil {
			return err
		}

		load, err := tx.GetOrCreatePosition(ctx, &Position{
			Address: position.Address,
			Owner:   req.User,
			Pool:    pool.Address,
			Bump:    position.Bump,
		})
		if err != nil {
			return err
		}
		pos := load.Position
		if !pos.Owner.Equals(req.User) {
			return ErrInvalidOwner
		}

		if req.Amount == 0 {
			return ErrInvalidAmount
		}
		if pool.Paused {
			return ErrPoolPaused
		}
		newStaked, err := addU64(pos.StakedAmount, req.Amount)
		if err != nil {
			return err
		}
		if newStaked < pool.MinStakeAmount {
			return ErrBelowMinimumStake
		}

		if pos.StakedAmount > 0 {
			if err := settle(pos, pool.RewardRate, now); err != nil {
				return err
			}
		}

		stakingVault, err := l.stakingVault(ctx, tx, pool)
		if err != nil {
			return err
		}
		if err := stakingVault.receive(ctx, req.UserTokenAccount, req.User, req.Amount); err != nil {
			return err
		}

		pos.StakedAmount = newStaked
		pos.LastStakeTime = now
		if pos.StakeStartTime == 0 {
			pos.StakeStartTime = now
		}
		if pool.TotalStaked, err = addU64(pool.TotalStaked, req.Amount); err != nil {
			return err
		}
		pool.LastUpdateTime = now

		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		ev = &Event{
			Kind:      EventStake,
			Pool:      pool.Address,
			User:      req.User,
			Amount:    req.Amount,
			Balance:   pos.StakedAmount,
			Timestamp: now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Unstake withdraws req.Amount of staked tokens back to the user once the
// lock period has passed.
func (l *Ledger) Unstake(ctx context.Context, req UnstakeRequest) (*Event, error) {
	position, err := mcsolana.GetUserStakePDA(l.programID, req.Pool, req.User)
	if err != nil {
		return nil, err
	}
	vault, err := mcsolana.GetPoolVaultPDA(l.programID, req.Pool)
	if err != nil {
		return nil, err
	}

	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "user": req.User.String(), "amount": req.Amount}
	writable := []solana.PublicKey{req.Pool, position.Address, vault.Address, req.UserTokenAccount}
	err = l.run(ctx, "unstake", fields, writable, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, position.Address)
		if err != nil {
			return err
		}
		if !pos.Owner.Equals(req.User) {
			return ErrInvalidOwner
		}
		if _, err := tokenAccount(ctx, tx, req.UserTokenAccount, req.User, pool.StakingMint); err != nil {
			return err
		}

		if req.Amount == 0 {
			return ErrInvalidAmount
		}
		if pos.StakedAmount < req.Amount {
			return ErrInsufficientStake
		}
		staked, err := subI64(now, pos.StakeStartTime)
		if err != nil {
			return err
		}
		if staked < pool.LockPeriod {
			return ErrStillLocked
		}

		if err := settle(pos, pool.RewardRate, now); err != nil {
			return err
		}

		stakingVault, err := l.stakingVault(ctx, tx, pool)
		if err != nil {
			return err
		}
		if err := stakingVault.Release(ctx, req.Amount, req.UserTokenAccount); err != nil {
			return err
		}

		if pos.StakedAmount, err = subU64(pos.StakedAmount, req.Amount); err != nil {
			return err
		}
		pos.LastStakeTime = now
		if pool.TotalStaked, err = subU64(pool.TotalStaked, req.Amount); err != nil {
			return err
		}
		pool.LastUpdateTime = now
		if pos.StakedAmount == 0 {
			pos.StakeStartTime = 0
		}

		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		ev = &Event{
			Kind:      EventUnstake,
			Pool:      pool.Address,
			User:      req.User,
			Amount:    req.Amount,
			Balance:   pos.StakedAmount,
			Timestamp: now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ClaimRewards pays out everything the position is owed. Claims are never
// partial: an underfunded reward vault rejects the claim.
func (l *Ledger) ClaimRewards(ctx context.Context, req ClaimRequest) (*Event, error) {
	position, err := mcsolana.GetUserStakePDA(l.programID, req.Pool, req.User)
	if err != nil {
		return nil, err
	}
	vault, err := mcsolana.GetRewardVaultPDA(l.programID, req.Pool)
	if err != nil {
		return nil, err
	}

	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "user": req.User.String()}
	writable := []solana.PublicKey{position.Address, vault.Address, req.UserRewardAccount}
	err = l.run(ctx, "claim_rewards", fields, writable, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, position.Address)
		if err != nil {
			return err
		}
		if !pos.Owner.Equals(req.User) {
			return ErrInvalidOwner
		}
		if _, err := tokenAccount(ctx, tx, req.UserRewardAccount, req.User, pool.RewardMint); err != nil {
			return err
		}

		pending := CalculatePendingRewards(pos.StakedAmount, pos.LastStakeTime, now, pool.RewardRate)
		total, err := addU64(pos.PendingRewards, pending)
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrNoRewards
		}

		rewardVault, err := l.rewardVault(ctx, tx, pool)
		if err != nil {
			return err
		}
		balance, err := rewardVault.Balance(ctx)
		if err != nil {
			return err
		}
		if balance < total {
			return ErrInsufficientRewardBalance
		}
		if err := rewardVault.Release(ctx, total, req.UserRewardAccount); err != nil {
			return err
		}

		pos.PendingRewards = 0
		pos.LastStakeTime = now
		if pos.TotalRewardsClaimed, err = addU64(pos.TotalRewardsClaimed, total); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}
		ev = &Event{
			Kind:      EventClaim,
			Pool:      pool.Address,
			User:      req.User,
			Amount:    total,
			Timestamp: now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// UpdateRewardRate replaces the pool's reward rate. Only the pool authority
// may call it.
func (l *Ledger) UpdateRewardRate(ctx context.Context, req UpdateRewardRateRequest) (*Event, error) {
	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "authority": req.Authority.String(), "new_rate": req.NewRate}
	err := l.run(ctx, "update_reward_rate", fields, []solana.PublicKey{req.Pool}, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		if !pool.Authority.Equals(req.Authority) {
			return ErrUnauthorized
		}

		oldRate := pool.RewardRate
		pool.RewardRate = req.NewRate
		pool.LastUpdateTime = now
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		ev = &Event{
			Kind:       EventRewardRateUpdated,
			Pool:       pool.Address,
			OldRate:    oldRate,
			RewardRate: req.NewRate,
			Timestamp:  now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// SetPaused stops or resumes deposits. Withdrawals and claims are not
// affected.
func (l *Ledger) SetPaused(ctx context.Context, req SetPausedRequest) (*Event, error) {
	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "authority": req.Authority.String(), "paused": req.Paused}
	err := l.run(ctx, "set_paused", fields, []solana.PublicKey{req.Pool}, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		if !pool.Authority.Equals(req.Authority) {
			return ErrUnauthorized
		}

		pool.Paused = req.Paused
		pool.LastUpdateTime = now
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		ev = &Event{
			Kind:      EventPoolPaused,
			Pool:      pool.Address,
			Paused:    req.Paused,
			Timestamp: now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// FundRewards tops up the reward vault. Anyone may fund a pool.
func (l *Ledger) FundRewards(ctx context.Context, req FundRewardsRequest) (*Event, error) {
	vault, err := mcsolana.GetRewardVaultPDA(l.programID, req.Pool)
	if err != nil {
		return nil, err
	}

	var ev *Event
	fields := log.Fields{"pool": req.Pool.String(), "funder": req.Funder.String(), "amount": req.Amount}
	writable := []solana.PublicKey{vault.Address, req.FunderTokenAccount}
	err = l.run(ctx, "fund_rewards", fields, writable, func(tx Tx, now int64) error {
		pool, err := tx.Pool(ctx, req.Pool)
		if err != nil {
			return err
		}
		if _, err := tokenAccount(ctx, tx, req.FunderTokenAccount, req.Funder, pool.RewardMint); err != nil {
			return err
		}
		if req.Amount == 0 {
			return ErrInvalidAmount
		}

		rewardVault, err := l.rewardVault(ctx, tx, pool)
		if err != nil {
			return err
		}
		if err := rewardVault.receive(ctx, req.FunderTokenAccount, req.Funder, req.Amount); err != nil {
			return err
		}
		ev = &Event{
			Kind:      EventRewardsFunded,
			Pool:      pool.Address,
			User:      req.Funder,
			Amount:    req.Amount,
			Timestamp: now,
		}
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Pool returns the pool stored at address.
func (l *Ledger) Pool(ctx context.Context, address solana.PublicKey) (*Pool, error) {
	var pool *Pool
	err := l.store.Atomic(ctx, func(tx Tx) error {
		var err error
		pool, err = tx.Pool(ctx, address)
		return err
	})
	return pool, err
}

// Position returns owner's position in pool.
func (l *Ledger) Position(ctx context.Context, pool, owner solana.PublicKey) (*Position, error) {
	address, err := mcsolana.GetUserStakePDA(l.programID, pool, owner)
	if err != nil {
		return nil, err
	}
	var pos *Position
	err = l.store.Atomic(ctx, func(tx Tx) error {
		var err error
		pos, err = tx.Position(ctx, address.Address)
		return err
	})
	return pos, err
}

// Preview reports what owner could claim and withdraw right now without
// changing any state.
func (l *Ledger) Preview(ctx context.Context, pool, owner solana.PublicKey) (*PositionPreview, error) {
	address, err := mcsolana.GetUserStakePDA(l.programID, pool, owner)
	if err != nil {
		return nil, err
	}

	var preview *PositionPreview
	err = l.store.Atomic(ctx, func(tx Tx) error {
		now := l.clock()
		p, err := tx.Pool(ctx, pool)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, address.Address)
		if err != nil {
			return err
		}
		vault, err := tx.TokenAccount(ctx, p.RewardVault)
		if err != nil {
			return custodyError(err)
		}

		pending := CalculatePendingRewards(pos.StakedAmount, pos.LastStakeTime, now, p.RewardRate)
		claimable, err := addU64(pos.PendingRewards, pending)
		if err != nil {
			return err
		}
		preview = &PositionPreview{
			Pool:               p,
			Position:           pos,
			Claimable:          claimable,
			RewardVaultBalance: vault.Amount,
			Now:                now,
		}
		if pos.StakedAmount > 0 {
			if preview.UnlockTime, err = addI64(pos.StakeStartTime, p.LockPeriod); err != nil {
				preview.UnlockTime = math.MaxInt64
			}
			staked, err := subI64(now, pos.StakeStartTime)
			preview.Unlocked = err == nil && staked >= p.LockPeriod
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

func (l *Ledger) run(ctx context.Context, op string, fields log.Fields, writable []solana.PublicKey, fn func(tx Tx, now int64) error) (err error) {
	start := time.Now()
	defer func() {
		if l.recorder != nil {
			l.recorder.Observe(op, err, time.Since(start))
		}
		entry := log.WithFields(fields).WithField("op", op)
		if err != nil {
			entry.WithError(err).Warn("ledger operation rejected")
			return
		}
		entry.Info("ledger operation applied")
	}()

	release, err := l.locks.Acquire(writable...)
	if err != nil {
		return err
	}
	defer release()

	now := l.clock()
	return l.store.Atomic(ctx, func(tx Tx) error {
		return fn(tx, now)
	})
}

func (l *Ledger) stakingVault(ctx context.Context, tx Tx, pool *Pool) (*Vault, error) {
	mint, err := tx.Mint(ctx, pool.StakingMint)
	if err != nil {
		return nil, custodyError(err)
	}
	program, err := l.programs.Lookup(pool.StakingTokenProgram)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMint, err)
	}
	return newVault(pool.Address, pool.StakingVault, mint, program, tx), nil
}

func (l *Ledger) rewardVault(ctx context.Context, tx Tx, pool *Pool) (*Vault, error) {
	mint, err := tx.Mint(ctx, pool.RewardMint)
	if err != nil {
		return nil, custodyError(err)
	}
	program, err := l.programs.Lookup(custody.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMint, err)
	}
	return newVault(pool.Address, pool.RewardVault, mint, program, tx), nil
}

// settle adds the reward accrued since the checkpoint to the position's
// pending rewards. The caller moves the checkpoint.
func settle(pos *Position, rate uint64, now int64) error {
	pending := CalculatePendingRewards(pos.StakedAmount, pos.LastStakeTime, now, rate)
	total, err := addU64(pos.PendingRewards, pending)
	if err != nil {
		return err
	}
	pos.PendingRewards = total
	return nil
}

// tokenAccount loads address and checks that it belongs to owner and holds mint.
func tokenAccount(ctx context.Context, tx Tx, address, owner, mint solana.PublicKey) (*custody.Account, error) {
	account, err := tx.TokenAccount(ctx, address)
	if err != nil {
		return nil, custodyError(err)
	}
	if !account.Owner.Equals(owner) {
		return nil, ErrInvalidOwner
	}
	if !account.Mint.Equals(mint) {
		return nil, ErrInvalidMint
	}
	return account, nil
}

// custodyError translates custody failures into ledger errors, keeping the
// original error in the chain.
func custodyError(err error) error {
	if err == nil {
		return nil
	}
	var ledgerErr *Error
	if errors.As(err, &ledgerErr) {
		return err
	}
	switch {
	case errors.Is(err, custody.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrTokenAccountNotFound, err)
	case errors.Is(err, custody.ErrMintNotFound):
		return fmt.Errorf("%w: %w", ErrMintNotFound, err)
	case errors.Is(err, custody.ErrOwnerMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidOwner, err)
	case errors.Is(err, custody.ErrMintMismatch),
		errors.Is(err, custody.ErrDecimalsMismatch),
		errors.Is(err, custody.ErrUnsupportedProgram),
		errors.Is(err, custody.ErrUnknownProgram):
		return fmt.Errorf("%w: %w", ErrInvalidMint, err)
	case errors.Is(err, custody.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrMathOverflow, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
}

func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func subU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

func addI64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func subI64(a, b int64) (int64, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		return 0, ErrMathOverflow
	}
	return diff, nil
}
