package ledger

import "github.com/holiman/uint256"

// RewardScale is the fixed-point scale of Pool.RewardRate.
const RewardScale uint64 = 1_000_000_000_000_000_000

var rewardScale = uint256.NewInt(RewardScale)

// CalculatePendingRewards returns the reward earned by staked units over
// [lastCheckpoint, now) at rate (scaled by RewardScale):
//
//	staked * rate * (now - lastCheckpoint) / RewardScale
//
// The product is formed in 256 bits, which holds any combination of inputs.
// A clock that has not advanced yields 0. A result too large for uint64 also
// yields 0 instead of an error: extreme configurations under-pay rather than
// halt the pool. Balance arithmetic elsewhere in the ledger never degrades
// this way.
func CalculatePendingRewards(staked uint64, lastCheckpoint, now int64, rate uint64) uint64 {
	if staked == 0 || now <= lastCheckpoint {
		return 0
	}

	// now > lastCheckpoint, so the difference fits in uint64 even when the
	// int64 subtraction would not.
	elapsed := uint64(now) - uint64(lastCheckpoint)

	v := new(uint256.Int).Mul(uint256.NewInt(staked), uint256.NewInt(rate))
	v.Mul(v, uint256.NewInt(elapsed))
	v.Div(v, rewardScale)
	if !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
