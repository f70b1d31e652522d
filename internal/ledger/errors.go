package ledger

import "fmt"

// Class groups errors by how a caller is expected to react to them.
type Class int

const (
	ClassValidation Class = iota
	ClassState
	ClassAuthorization
	ClassArithmetic
	ClassNotFound
	ClassContention
)

// Error is a ledger error. Codes 6000-6010 keep the numbering of the
// on-chain program's custom errors so clients can share one table.
type Error struct {
	Code    int
	Name    string
	Message string
	Class   Class
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

var (
	ErrInvalidAmount             = &Error{6000, "InvalidAmount", "invalid stake amount - must be greater than 0", ClassValidation}
	ErrInsufficientStake         = &Error{6001, "InsufficientStake", "insufficient staked balance", ClassState}
	ErrStillLocked               = &Error{6002, "StillLocked", "tokens are still in lock period", ClassState}
	ErrNoRewards                 = &Error{6003, "NoRewards", "no rewards available to claim", ClassState}
	ErrPoolPaused                = &Error{6004, "PoolPaused", "pool is currently paused", ClassState}
	ErrInsufficientRewardBalance = &Error{6005, "InsufficientRewardBalance", "insufficient reward tokens in vault", ClassState}
	ErrMathOverflow              = &Error{6006, "MathOverflow", "math overflow error", ClassArithmetic}
	ErrUnauthorized              = &Error{6007, "Unauthorized", "unauthorized - admin only", ClassAuthorization}
	ErrInvalidOwner              = &Error{6008, "InvalidOwner", "invalid token account owner", ClassAuthorization}
	ErrInvalidMint               = &Error{6009, "InvalidMint", "invalid token mint", ClassAuthorization}
	ErrBelowMinimumStake         = &Error{6010, "BelowMinimumStake", "stake amount below minimum required", ClassValidation}

	ErrAlreadyInitialized   = &Error{6100, "AlreadyInitialized", "pool already initialized for this staking mint", ClassState}
	ErrPoolNotFound         = &Error{6101, "PoolNotFound", "pool not found", ClassNotFound}
	ErrPositionNotFound     = &Error{6102, "PositionNotFound", "stake position not found", ClassNotFound}
	ErrAccountInUse         = &Error{6103, "AccountInUse", "a record is in use by another operation, resubmit", ClassContention}
	ErrMintNotFound         = &Error{6104, "MintNotFound", "mint not found", ClassNotFound}
	ErrTokenAccountNotFound = &Error{6105, "TokenAccountNotFound", "token account not found", ClassNotFound}
	ErrTransferFailed       = &Error{6106, "TransferFailed", "token transfer rejected by custody", ClassState}
)
