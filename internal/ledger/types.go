package ledger

import "github.com/gagliardetto/solana-go"

// Pool is the shared configuration and aggregate state of one staking market.
type Pool struct {
	Address             solana.PublicKey
	Authority           solana.PublicKey
	StakingMint         solana.PublicKey
	RewardMint          solana.PublicKey
	StakingVault        solana.PublicKey
	RewardVault         solana.PublicKey
	StakingTokenProgram solana.PublicKey
	// RewardRate is rewards per second per staked unit, scaled by RewardScale.
	RewardRate     uint64
	LockPeriod     int64
	MinStakeAmount uint64
	TotalStaked    uint64
	LastUpdateTime int64
	Paused         bool
	Bump           uint8
}

// Position is one depositor's state within a pool.
type Position struct {
	Address        solana.PublicKey
	Owner          solana.PublicKey
	Pool           solana.PublicKey
	StakedAmount   uint64
	PendingRewards uint64
	// LastStakeTime is the checkpoint up to which rewards are settled.
	LastStakeTime int64
	// StakeStartTime starts the lock clock. Zero while nothing is staked.
	StakeStartTime      int64
	TotalRewardsClaimed uint64
	Bump                uint8
}

// PositionLoad is the result of GetOrCreatePosition.
type PositionLoad struct {
	Position *Position
	Created  bool
}

// PositionPreview is a read-only view of what a position could do right now.
type PositionPreview struct {
	Pool               *Pool
	Position           *Position
	Claimable          uint64
	UnlockTime         int64
	Unlocked           bool
	RewardVaultBalance uint64
	Now                int64
}

type EventKind string

const (
	EventPoolInitialized   EventKind = "PoolInitialized"
	EventStake             EventKind = "StakeEvent"
	EventUnstake           EventKind = "UnstakeEvent"
	EventClaim             EventKind = "ClaimEvent"
	EventRewardRateUpdated EventKind = "RewardRateUpdated"
	EventPoolPaused        EventKind = "PoolPausedEvent"
	EventRewardsFunded     EventKind = "RewardsFunded"
)

// Event is one entry of the append-only ledger log. Which fields are set
// depends on Kind. User holds the staker, or the funder for RewardsFunded.
// Balance is the position's staked amount after a stake or unstake.
type Event struct {
	Seq            uint64
	Kind           EventKind
	Pool           solana.PublicKey
	User           solana.PublicKey
	Amount         uint64
	Balance        uint64
	StakingMint    solana.PublicKey
	RewardMint     solana.PublicKey
	RewardRate     uint64
	OldRate        uint64
	LockPeriod     int64
	MinStakeAmount uint64
	Paused         bool
	Timestamp      int64
}

type InitializePoolRequest struct {
	Authority      solana.PublicKey
	StakingMint    solana.PublicKey
	RewardMint     solana.PublicKey
	RewardRate     uint64
	LockPeriod     int64
	MinStakeAmount uint64
}

type StakeRequest struct {
	Pool             solana.PublicKey
	User             solana.PublicKey
	UserTokenAccount solana.PublicKey
	Amount           uint64
}

type UnstakeRequest struct {
	Pool             solana.PublicKey
	User             solana.PublicKey
	UserTokenAccount solana.PublicKey
	Amount           uint64
}

type ClaimRequest struct {
	Pool              solana.PublicKey
	User              solana.PublicKey
	UserRewardAccount solana.PublicKey
}

type UpdateRewardRateRequest struct {
	Pool      solana.PublicKey
	Authority solana.PublicKey
	NewRate   uint64
}

type SetPausedRequest struct {
	Pool      solana.PublicKey
	Authority solana.PublicKey
	Paused    bool
}

type FundRewardsRequest struct {
	Pool               solana.PublicKey
	Funder             solana.PublicKey
	FunderTokenAccount solana.PublicKey
	Amount             uint64
}
