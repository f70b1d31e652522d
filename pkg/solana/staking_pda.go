package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultStakingProgramID is the id of the deployed staking program. Every
// record address of the ledger is derived from it.
var DefaultStakingProgramID = solana.MustPublicKeyFromBase58("2RoYimfnkSHZTFrjzLNYt5DSJKPm6VHRbg2k3sfmyCDB")

// PDA seeds
var (
	SEED_POOL         = []byte("pool")
	SEED_POOL_VAULT   = []byte("pool_vault")
	SEED_REWARD_VAULT = []byte("reward_vault")
	SEED_USER_STAKE   = []byte("user_stake")
)

// PDAResult is a derived program address and its bump seed.
type PDAResult struct {
	Address solana.PublicKey
	Bump    uint8
}

// PoolAddresses groups every address owned by one pool.
type PoolAddresses struct {
	Pool         PDAResult
	StakingVault PDAResult
	RewardVault  PDAResult
}

func findPDA(name string, programID solana.PublicKey, seeds ...[]byte) (PDAResult, error) {
	address, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find %s PDA: %w", name, err)
	}
	return PDAResult{Address: address, Bump: bump}, nil
}

// GetPoolPDA derives the pool record address for a staking mint.
func GetPoolPDA(programID, stakingMint solana.PublicKey) (PDAResult, error) {
	return findPDA("pool", programID, SEED_POOL, stakingMint[:])
}

// GetPoolVaultPDA derives the vault holding a pool's staked tokens.
func GetPoolVaultPDA(programID, pool solana.PublicKey) (PDAResult, error) {
	return findPDA("pool vault", programID, SEED_POOL_VAULT, pool[:])
}

// GetRewardVaultPDA derives the vault holding a pool's reward reserve.
func GetRewardVaultPDA(programID, pool solana.PublicKey) (PDAResult, error) {
	return findPDA("reward vault", programID, SEED_REWARD_VAULT, pool[:])
}

// GetUserStakePDA derives the position record of owner in pool.
func GetUserStakePDA(programID, pool, owner solana.PublicKey) (PDAResult, error) {
	return findPDA("user stake", programID, SEED_USER_STAKE, pool[:], owner[:])
}

// GetPoolAddresses derives the pool and both of its vaults.
func GetPoolAddresses(programID, stakingMint solana.PublicKey) (PoolAddresses, error) {
	pool, err := GetPoolPDA(programID, stakingMint)
	if err != nil {
		return PoolAddresses{}, err
	}
	stakingVault, err := GetPoolVaultPDA(programID, pool.Address)
	if err != nil {
		return PoolAddresses{}, err
	}
	rewardVault, err := GetRewardVaultPDA(programID, pool.Address)
	if err != nil {
		return PoolAddresses{}, err
	}
	return PoolAddresses{Pool: pool, StakingVault: stakingVault, RewardVault: rewardVault}, nil
}
