package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeledger/internal/custody"
	mcsolana "stakeledger/pkg/solana"
)

const start int64 = 1_700_000_000

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *MemoryStore
	locks  *Locks
	ledger *Ledger
	now    int64

	authority   solana.PublicKey
	stakingMint solana.PublicKey
	rewardMint  solana.PublicKey
	addrs       mcsolana.PoolAddresses
	pool        solana.PublicKey
}

type staker struct {
	owner         solana.PublicKey
	tokenAccount  solana.PublicKey
	rewardAccount solana.PublicKey
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// newFixture registers the mints and returns a ledger whose clock the test controls.
func newFixture(t *testing.T, stakingProgram solana.PublicKey) *fixture {
	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		store:       NewMemoryStore(),
		locks:       NewLocks(),
		now:         start,
		authority:   newKey(),
		stakingMint: newKey(),
		rewardMint:  newKey(),
	}
	f.store.RegisterMint(custody.Mint{Address: f.stakingMint, Decimals: 6, Program: stakingProgram})
	f.store.RegisterMint(custody.Mint{Address: f.rewardMint, Decimals: 9, Program: custody.TokenProgramID})
	f.ledger = New(f.store, WithClock(func() int64 { return f.now }), WithLocks(f.locks))

	var err error
	f.addrs, err = mcsolana.GetPoolAddresses(f.ledger.ProgramID(), f.stakingMint)
	require.NoError(t, err)
	f.pool = f.addrs.Pool.Address
	return f
}

func (f *fixture) initPool(rate uint64, lock int64, min uint64) {
	_, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{
		Authority:      f.authority,
		StakingMint:    f.stakingMint,
		RewardMint:     f.rewardMint,
		RewardRate:     rate,
		LockPeriod:     lock,
		MinStakeAmount: min,
	})
	require.NoError(f.t, err)
}

func (f *fixture) newStaker(balance uint64) staker {
	s := staker{owner: newKey(), tokenAccount: newKey(), rewardAccount: newKey()}
	f.store.PutTokenAccount(custody.Account{Address: s.tokenAccount, Mint: f.stakingMint, Owner: s.owner, Amount: balance})
	f.store.PutTokenAccount(custody.Account{Address: s.rewardAccount, Mint: f.rewardMint, Owner: s.owner})
	return s
}

func (f *fixture) fund(amount uint64) {
	funder, account := newKey(), newKey()
	f.store.PutTokenAccount(custody.Account{Address: account, Mint: f.rewardMint, Owner: funder, Amount: amount})
	_, err := f.ledger.FundRewards(f.ctx, FundRewardsRequest{Pool: f.pool, Funder: funder, FunderTokenAccount: account, Amount: amount})
	require.NoError(f.t, err)
}

func (f *fixture) stake(s staker, amount uint64) (*Event, error) {
	return f.ledger.Stake(f.ctx, StakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: s.tokenAccount, Amount: amount})
}

func (f *fixture) unstake(s staker, amount uint64) (*Event, error) {
	return f.ledger.Unstake(f.ctx, UnstakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: s.tokenAccount, Amount: amount})
}

func (f *fixture) claim(s staker) (*Event, error) {
	return f.ledger.ClaimRewards(f.ctx, ClaimRequest{Pool: f.pool, User: s.owner, UserRewardAccount: s.rewardAccount})
}

func (f *fixture) position(s staker) *Position {
	pos, err := f.ledger.Position(f.ctx, f.pool, s.owner)
	require.NoError(f.t, err)
	return pos
}

func (f *fixture) poolState() *Pool {
	pool, err := f.ledger.Pool(f.ctx, f.pool)
	require.NoError(f.t, err)
	return pool
}

func TestInitializePool(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)

	ev, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{
		Authority:      f.authority,
		StakingMint:    f.stakingMint,
		RewardMint:     f.rewardMint,
		RewardRate:     RewardScale,
		LockPeriod:     3600,
		MinStakeAmount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, EventPoolInitialized, ev.Kind)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, f.pool, ev.Pool)
	assert.Equal(t, int64(3600), ev.LockPeriod)

	pool := f.poolState()
	assert.Equal(t, f.authority, pool.Authority)
	assert.Equal(t, f.addrs.StakingVault.Address, pool.StakingVault)
	assert.Equal(t, f.addrs.RewardVault.Address, pool.RewardVault)
	assert.Equal(t, custody.TokenProgramID, pool.StakingTokenProgram)
	assert.Equal(t, f.addrs.Pool.Bump, pool.Bump)
	assert.Equal(t, start, pool.LastUpdateTime)
	assert.Zero(t, pool.TotalStaked)
	assert.False(t, pool.Paused)

	assert.Zero(t, f.store.Balance(pool.StakingVault))
	assert.Zero(t, f.store.Balance(pool.RewardVault))

	t.Run("Twice", func(t *testing.T) {
		_, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{
			Authority:   newKey(),
			StakingMint: f.stakingMint,
			RewardMint:  f.rewardMint,
		})
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		assert.Equal(t, f.authority, f.poolState().Authority)
		assert.Len(t, f.store.Events(), 1)
	})
}

func TestInitializePoolMints(t *testing.T) {
	t.Run("Token2022 staking mint", func(t *testing.T) {
		f := newFixture(t, custody.Token2022ProgramID)
		f.initPool(RewardScale, 0, 1)
		assert.Equal(t, custody.Token2022ProgramID, f.poolState().StakingTokenProgram)

		s := f.newStaker(100)
		_, err := f.stake(s, 40)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), f.store.Balance(f.addrs.StakingVault.Address))
	})

	t.Run("Reward mint on Token2022", func(t *testing.T) {
		f := newFixture(t, custody.TokenProgramID)
		f.store.RegisterMint(custody.Mint{Address: f.rewardMint, Decimals: 9, Program: custody.Token2022ProgramID})
		_, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{Authority: f.authority, StakingMint: f.stakingMint, RewardMint: f.rewardMint})
		assert.ErrorIs(t, err, ErrInvalidMint)
	})

	t.Run("Unknown staking program", func(t *testing.T) {
		f := newFixture(t, newKey())
		_, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{Authority: f.authority, StakingMint: f.stakingMint, RewardMint: f.rewardMint})
		assert.ErrorIs(t, err, ErrInvalidMint)
	})

	t.Run("Missing mint", func(t *testing.T) {
		f := newFixture(t, custody.TokenProgramID)
		_, err := f.ledger.InitializePool(f.ctx, InitializePoolRequest{Authority: f.authority, StakingMint: f.stakingMint, RewardMint: newKey()})
		assert.ErrorIs(t, err, ErrMintNotFound)
		_, err = f.ledger.Pool(f.ctx, f.pool)
		assert.ErrorIs(t, err, ErrPoolNotFound)
	})
}

func TestStakeAndUnstakeScenario(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(500)

	ev, err := f.stake(s, 100)
	require.NoError(t, err)
	assert.Equal(t, EventStake, ev.Kind)
	assert.Equal(t, uint64(100), ev.Amount)
	assert.Equal(t, uint64(100), ev.Balance)

	pos := f.position(s)
	assert.Equal(t, uint64(100), pos.StakedAmount)
	assert.Equal(t, start, pos.StakeStartTime)
	assert.Equal(t, start, pos.LastStakeTime)
	assert.Equal(t, s.owner, pos.Owner)
	assert.Equal(t, uint64(400), f.store.Balance(s.tokenAccount))
	assert.Equal(t, uint64(100), f.store.Balance(f.addrs.StakingVault.Address))

	f.now = start + 10
	preview, err := f.ledger.Preview(f.ctx, f.pool, s.owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), preview.Claimable)
	assert.True(t, preview.Unlocked)

	ev, err = f.unstake(s, 100)
	require.NoError(t, err)
	assert.Equal(t, EventUnstake, ev.Kind)
	assert.Zero(t, ev.Balance)

	pos = f.position(s)
	assert.Zero(t, pos.StakedAmount)
	assert.Equal(t, uint64(1000), pos.PendingRewards)
	assert.Zero(t, pos.StakeStartTime)
	assert.Equal(t, start+10, pos.LastStakeTime)
	assert.Zero(t, f.poolState().TotalStaked)
	assert.Equal(t, uint64(500), f.store.Balance(s.tokenAccount))
	assert.Zero(t, f.store.Balance(f.addrs.StakingVault.Address))

	// Settled rewards stay claimable after a full withdrawal.
	f.fund(1000)
	f.now = start + 50
	ev, err = f.claim(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), ev.Amount)
	assert.Equal(t, uint64(1000), f.store.Balance(s.rewardAccount))
}

func TestSequentialDepositsWithoutElapsedTime(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(100)

	_, err := f.stake(s, 50)
	require.NoError(t, err)
	_, err = f.stake(s, 50)
	require.NoError(t, err)

	pos := f.position(s)
	assert.Equal(t, uint64(100), pos.StakedAmount)
	assert.Zero(t, pos.PendingRewards)
	assert.Zero(t, f.store.Balance(s.tokenAccount))
}

func TestLaterDepositSettlesRewards(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 3600, 1)
	s := f.newStaker(300)

	_, err := f.stake(s, 100)
	require.NoError(t, err)
	f.now = start + 7
	_, err = f.stake(s, 200)
	require.NoError(t, err)

	pos := f.position(s)
	assert.Equal(t, uint64(700), pos.PendingRewards)
	assert.Equal(t, start+7, pos.LastStakeTime)
	// The lock clock is not restarted by a top-up.
	assert.Equal(t, start, pos.StakeStartTime)
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 50)
	s := f.newStaker(1000)

	t.Run("Zero amount", func(t *testing.T) {
		_, err := f.stake(s, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Empty(t, f.store.Positions(f.pool))
	})

	t.Run("Below minimum", func(t *testing.T) {
		_, err := f.stake(s, 49)
		assert.ErrorIs(t, err, ErrBelowMinimumStake)
		assert.Empty(t, f.store.Positions(f.pool))
	})

	t.Run("Exactly minimum", func(t *testing.T) {
		_, err := f.stake(s, 50)
		require.NoError(t, err)
		_, err = f.stake(s, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(51), f.position(s).StakedAmount)
	})

	t.Run("Foreign token account", func(t *testing.T) {
		other := f.newStaker(100)
		_, err := f.ledger.Stake(f.ctx, StakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: other.tokenAccount, Amount: 60})
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})

	t.Run("Wrong mint", func(t *testing.T) {
		_, err := f.ledger.Stake(f.ctx, StakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: s.rewardAccount, Amount: 60})
		assert.ErrorIs(t, err, ErrInvalidMint)
	})

	t.Run("Missing token account", func(t *testing.T) {
		_, err := f.ledger.Stake(f.ctx, StakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: newKey(), Amount: 60})
		assert.ErrorIs(t, err, ErrTokenAccountNotFound)
	})

	t.Run("Insufficient balance", func(t *testing.T) {
		poor := f.newStaker(10)
		_, err := f.stake(poor, 60)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, custody.ErrInsufficientFunds)
		assert.Equal(t, uint64(10), f.store.Balance(poor.tokenAccount))
	})

	t.Run("Unknown pool", func(t *testing.T) {
		_, err := f.ledger.Stake(f.ctx, StakeRequest{Pool: newKey(), User: s.owner, UserTokenAccount: s.tokenAccount, Amount: 60})
		assert.ErrorIs(t, err, ErrPoolNotFound)
	})

	assert.Equal(t, uint64(51), f.poolState().TotalStaked)
}

func TestPausedPool(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	f.fund(1_000_000)
	s := f.newStaker(100)
	_, err := f.stake(s, 60)
	require.NoError(t, err)

	_, err = f.ledger.SetPaused(f.ctx, SetPausedRequest{Pool: f.pool, Authority: newKey(), Paused: true})
	assert.ErrorIs(t, err, ErrUnauthorized)

	f.now = start + 5
	ev, err := f.ledger.SetPaused(f.ctx, SetPausedRequest{Pool: f.pool, Authority: f.authority, Paused: true})
	require.NoError(t, err)
	assert.Equal(t, EventPoolPaused, ev.Kind)
	assert.True(t, ev.Paused)
	assert.True(t, f.poolState().Paused)
	assert.Equal(t, start+5, f.poolState().LastUpdateTime)

	for _, amount := range []uint64{1, 40, 1_000_000} {
		_, err = f.stake(s, amount)
		assert.ErrorIs(t, err, ErrPoolPaused, "amount %d", amount)
	}
	_, err = f.stake(s, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.now = start + 10
	_, err = f.claim(s)
	require.NoError(t, err)
	_, err = f.unstake(s, 60)
	require.NoError(t, err)

	_, err = f.ledger.SetPaused(f.ctx, SetPausedRequest{Pool: f.pool, Authority: f.authority, Paused: false})
	require.NoError(t, err)
	_, err = f.stake(s, 40)
	require.NoError(t, err)
}

func TestLockPeriodBoundary(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 100, 1)
	s := f.newStaker(100)
	_, err := f.stake(s, 100)
	require.NoError(t, err)

	f.now = start + 99
	_, err = f.unstake(s, 100)
	assert.ErrorIs(t, err, ErrStillLocked)

	preview, err := f.ledger.Preview(f.ctx, f.pool, s.owner)
	require.NoError(t, err)
	assert.False(t, preview.Unlocked)
	assert.Equal(t, start+100, preview.UnlockTime)

	f.now = start + 100
	_, err = f.unstake(s, 100)
	require.NoError(t, err)
}

func TestPreviewUnlockTimeClamps(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, math.MaxInt64, 1)
	s := f.newStaker(100)
	_, err := f.stake(s, 100)
	require.NoError(t, err)

	f.now = start + 1_000
	preview, err := f.ledger.Preview(f.ctx, f.pool, s.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), preview.UnlockTime)
	assert.False(t, preview.Unlocked)

	_, err = f.unstake(s, 100)
	assert.ErrorIs(t, err, ErrStillLocked)
}

func TestUnstakeValidation(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(100)

	_, err := f.unstake(s, 10)
	assert.ErrorIs(t, err, ErrPositionNotFound)

	_, err = f.stake(s, 50)
	require.NoError(t, err)

	_, err = f.unstake(s, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.unstake(s, 51)
	assert.ErrorIs(t, err, ErrInsufficientStake)

	other := f.newStaker(0)
	_, err = f.ledger.Unstake(f.ctx, UnstakeRequest{Pool: f.pool, User: s.owner, UserTokenAccount: other.tokenAccount, Amount: 10})
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = f.unstake(s, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), f.position(s).StakedAmount)
	assert.Equal(t, start, f.position(s).StakeStartTime)
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(100)
	_, err := f.stake(s, 100)
	require.NoError(t, err)

	t.Run("Nothing accrued", func(t *testing.T) {
		_, err := f.claim(s)
		assert.ErrorIs(t, err, ErrNoRewards)
	})

	t.Run("Underfunded vault", func(t *testing.T) {
		f.now = start + 5
		_, err := f.stake(s, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		f.fund(10)
		f.now = start + 10
		_, err = f.claim(s)
		assert.ErrorIs(t, err, ErrInsufficientRewardBalance)

		pos := f.position(s)
		assert.Zero(t, pos.PendingRewards)
		assert.Equal(t, start, pos.LastStakeTime)
		assert.Equal(t, uint64(10), f.store.Balance(f.addrs.RewardVault.Address))
	})

	t.Run("Funded vault", func(t *testing.T) {
		f.fund(5000)
		ev, err := f.claim(s)
		require.NoError(t, err)
		assert.Equal(t, EventClaim, ev.Kind)
		assert.Equal(t, uint64(1000), ev.Amount)

		pos := f.position(s)
		assert.Zero(t, pos.PendingRewards)
		assert.Equal(t, uint64(1000), pos.TotalRewardsClaimed)
		assert.Equal(t, start+10, pos.LastStakeTime)
		assert.Equal(t, uint64(1000), f.store.Balance(s.rewardAccount))
		assert.Equal(t, uint64(4010), f.store.Balance(f.addrs.RewardVault.Address))
	})

	t.Run("Twice in a row", func(t *testing.T) {
		_, err := f.claim(s)
		assert.ErrorIs(t, err, ErrNoRewards)
		assert.Equal(t, uint64(1000), f.position(s).TotalRewardsClaimed)
	})

	t.Run("Foreign reward account", func(t *testing.T) {
		f.now = start + 20
		other := f.newStaker(0)
		_, err := f.ledger.ClaimRewards(f.ctx, ClaimRequest{Pool: f.pool, User: s.owner, UserRewardAccount: other.rewardAccount})
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})
}

func TestClaimKeepsPendingOnUnderfundedVault(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(200)
	_, err := f.stake(s, 100)
	require.NoError(t, err)
	f.now = start + 5
	_, err = f.stake(s, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(500), f.position(s).PendingRewards)

	f.fund(10)
	f.now = start + 10
	_, err = f.claim(s)
	assert.ErrorIs(t, err, ErrInsufficientRewardBalance)
	assert.Equal(t, uint64(500), f.position(s).PendingRewards)
}

func TestUpdateRewardRate(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	f.fund(1_000_000)
	s := f.newStaker(100)
	_, err := f.stake(s, 100)
	require.NoError(t, err)

	_, err = f.ledger.UpdateRewardRate(f.ctx, UpdateRewardRateRequest{Pool: f.pool, Authority: s.owner, NewRate: 0})
	assert.ErrorIs(t, err, ErrUnauthorized)

	f.now = start + 5
	ev, err := f.ledger.UpdateRewardRate(f.ctx, UpdateRewardRateRequest{Pool: f.pool, Authority: f.authority, NewRate: 2 * RewardScale})
	require.NoError(t, err)
	assert.Equal(t, EventRewardRateUpdated, ev.Kind)
	assert.Equal(t, RewardScale, ev.OldRate)
	assert.Equal(t, 2*RewardScale, ev.RewardRate)

	// The new rate applies to the whole interval since the checkpoint.
	f.now = start + 10
	ev, err = f.claim(s)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), ev.Amount)
}

func TestFundRewards(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	funder, account := newKey(), newKey()
	f.store.PutTokenAccount(custody.Account{Address: account, Mint: f.rewardMint, Owner: funder, Amount: 100})

	req := FundRewardsRequest{Pool: f.pool, Funder: funder, FunderTokenAccount: account}

	req.Amount = 0
	_, err := f.ledger.FundRewards(f.ctx, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	req.Amount = 101
	_, err = f.ledger.FundRewards(f.ctx, req)
	assert.ErrorIs(t, err, ErrTransferFailed)

	req.Amount = 60
	ev, err := f.ledger.FundRewards(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, EventRewardsFunded, ev.Kind)
	assert.Equal(t, funder, ev.User)
	assert.Equal(t, uint64(60), f.store.Balance(f.addrs.RewardVault.Address))
	assert.Equal(t, uint64(40), f.store.Balance(account))

	_, err = f.ledger.FundRewards(f.ctx, FundRewardsRequest{Pool: f.pool, Funder: newKey(), FunderTokenAccount: account, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestEventsAreSequenced(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	f.fund(100)
	s := f.newStaker(100)
	_, err := f.stake(s, 10)
	require.NoError(t, err)
	_, err = f.stake(s, 0)
	require.Error(t, err)
	f.now++
	_, err = f.unstake(s, 10)
	require.NoError(t, err)

	events := f.store.Events()
	kinds := make([]EventKind, 0, len(events))
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventPoolInitialized, EventRewardsFunded, EventStake, EventUnstake}, kinds)
}

func TestContendedRecordsAreRejected(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(100)

	release, err := f.locks.Acquire(f.pool)
	require.NoError(t, err)

	_, err = f.stake(s, 10)
	assert.ErrorIs(t, err, ErrAccountInUse)
	assert.Empty(t, f.store.Positions(f.pool))
	assert.False(t, f.locks.Held(s.tokenAccount))

	release()
	_, err = f.stake(s, 10)
	require.NoError(t, err)
	assert.False(t, f.locks.Held(f.pool))
}

type recorded struct {
	op  string
	err error
}

type fakeRecorder struct {
	calls []recorded
}

func (r *fakeRecorder) Observe(op string, err error, _ time.Duration) {
	r.calls = append(r.calls, recorded{op, err})
}

func TestRecorderObservesOperations(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	rec := &fakeRecorder{}
	f.ledger = New(f.store, WithClock(func() int64 { return f.now }), WithRecorder(rec))
	f.initPool(RewardScale, 0, 1)
	s := f.newStaker(100)
	_, _ = f.stake(s, 0)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, "initialize_pool", rec.calls[0].op)
	assert.NoError(t, rec.calls[0].err)
	assert.Equal(t, "stake", rec.calls[1].op)
	assert.ErrorIs(t, rec.calls[1].err, ErrInvalidAmount)
}

// TestRandomizedConservation runs random deposits and withdrawals and checks
// that the pool total always equals the sum of positions and the vault balance.
func TestRandomizedConservation(t *testing.T) {
	f := newFixture(t, custody.TokenProgramID)
	f.initPool(RewardScale/10, 3, 5)
	f.fund(1_000_000_000)

	stakers := make([]staker, 6)
	for i := range stakers {
		stakers[i] = f.newStaker(10_000)
	}

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 500; step++ {
		f.now += int64(rng.Intn(3))
		s := stakers[rng.Intn(len(stakers))]
		amount := uint64(rng.Intn(200))

		var err error
		switch rng.Intn(3) {
		case 0:
			_, err = f.stake(s, amount)
		case 1:
			_, err = f.unstake(s, amount)
		default:
			_, err = f.claim(s)
		}
		if err != nil {
			var ledgerErr *Error
			require.True(t, errors.As(err, &ledgerErr), "step %d: %v", step, err)
		}

		var sum uint64
		for _, pos := range f.store.Positions(f.pool) {
			sum += pos.StakedAmount
			if pos.StakedAmount == 0 {
				assert.Zero(t, pos.StakeStartTime)
			}
		}
		pool := f.poolState()
		require.Equal(t, sum, pool.TotalStaked, "step %d", step)
		require.Equal(t, sum, f.store.Balance(pool.StakingVault), "step %d", step)
	}

	var held uint64
	for _, s := range stakers {
		held += f.store.Balance(s.tokenAccount)
	}
	assert.Equal(t, uint64(len(stakers))*10_000, held+f.poolState().TotalStaked)
}
