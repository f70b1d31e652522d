package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"stakeledger/internal/custody"
)

// Tx is the view of persisted records available to one operation. Nothing
// written through a Tx is visible to others until the enclosing Atomic call
// returns nil.
type Tx interface {
	custody.AccountStore

	// Pool returns ErrPoolNotFound if no pool lives at address.
	Pool(ctx context.Context, address solana.PublicKey) (*Pool, error)
	// CreatePool returns ErrAlreadyInitialized if address is taken.
	CreatePool(ctx context.Context, pool *Pool) error
	SavePool(ctx context.Context, pool *Pool) error

	// Position returns ErrPositionNotFound if no position lives at address.
	Position(ctx context.Context, address solana.PublicKey) (*Position, error)
	// GetOrCreatePosition returns the position at fresh.Address, storing
	// fresh first if there is none.
	GetOrCreatePosition(ctx context.Context, fresh *Position) (PositionLoad, error)
	SavePosition(ctx context.Context, position *Position) error

	// AppendEvent assigns the next sequence number to ev and stores it.
	AppendEvent(ctx context.Context, ev *Event) error
}

// Store runs fn as one all-or-nothing unit. If fn returns an error every
// write made through tx is discarded.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
