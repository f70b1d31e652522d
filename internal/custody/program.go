// Package custody moves token balances between accounts on behalf of the
// staking ledger. It mirrors the subset of the SPL token programs the ledger
// relies on: checked transfers between accounts of the same mint, authorized
// by the source account's owner.
package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// TokenProgramID is the classic SPL Token program.
	TokenProgramID = solana.TokenProgramID
	// Token2022ProgramID is the SPL Token-2022 (token extensions) program.
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

var (
	ErrAccountNotFound    = errors.New("token account not found")
	ErrAccountExists      = errors.New("token account already exists")
	ErrMintNotFound       = errors.New("mint not found")
	ErrMintMismatch       = errors.New("account mint does not match transfer mint")
	ErrOwnerMismatch      = errors.New("authority is not the source account owner")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDecimalsMismatch   = errors.New("decimals do not match mint")
	ErrOverflow           = errors.New("destination balance overflow")
	ErrUnsupportedProgram = errors.New("mint is not owned by this token program")
	ErrUnknownProgram     = errors.New("unknown token program")
)

// Mint describes a token type.
type Mint struct {
	Address  solana.PublicKey
	Decimals uint8
	Program  solana.PublicKey
}

// Account is a token balance held for an owner.
type Account struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

// AccountStore is the persistence a token program needs. Implementations are
// expected to be scoped to the caller's transaction.
type AccountStore interface {
	Mint(ctx context.Context, address solana.PublicKey) (*Mint, error)
	TokenAccount(ctx context.Context, address solana.PublicKey) (*Account, error)
	CreateTokenAccount(ctx context.Context, account *Account) error
	SaveTokenAccount(ctx context.Context, account *Account) error
}

// Transfer is one checked movement of Amount units of Mint from From to To.
// Authority must be the owner of From.
type Transfer struct {
	From      solana.PublicKey
	To        solana.PublicKey
	Mint      solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
	Decimals  uint8
}

// TokenProgram is a transfer backend. The ledger only ever sees this
// interface, so which program is active is decided when a pool is created.
type TokenProgram interface {
	ID() solana.PublicKey
	TransferChecked(ctx context.Context, accounts AccountStore, t Transfer) error
}

// Registry resolves token programs by id.
type Registry struct {
	programs map[solana.PublicKey]TokenProgram
}

// NewRegistry returns a registry holding the given programs.
func NewRegistry(programs ...TokenProgram) *Registry {
	r := &Registry{programs: make(map[solana.PublicKey]TokenProgram, len(programs))}
	for _, p := range programs {
		r.programs[p.ID()] = p
	}
	return r
}

// DefaultRegistry holds SPL Token and Token-2022.
func DefaultRegistry() *Registry {
	return NewRegistry(NewSplToken(), NewToken2022())
}

// Lookup returns the program registered under id.
func (r *Registry) Lookup(id solana.PublicKey) (TokenProgram, error) {
	p, ok := r.programs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return p, nil
}

// move validates the accounts of t and applies the balance change. The
// decimals check is left to the caller because only some programs enforce it.
func move(ctx context.Context, programID solana.PublicKey, accounts AccountStore, t Transfer) (*Mint, error) {
	mint, err := accounts.Mint(ctx, t.Mint)
	if err != nil {
		return nil, err
	}
	if !mint.Program.Equals(programID) {
		return nil, fmt.Errorf("%w: mint %s is owned by %s", ErrUnsupportedProgram, mint.Address, mint.Program)
	}

	from, err := accounts.TokenAccount(ctx, t.From)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", t.From, err)
	}
	to, err := accounts.TokenAccount(ctx, t.To)
	if err != nil {
		return nil, fmt.Errorf("destination %s: %w", t.To, err)
	}
	if !from.Mint.Equals(t.Mint) || !to.Mint.Equals(t.Mint) {
		return nil, ErrMintMismatch
	}
	if !from.Owner.Equals(t.Authority) {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrOwnerMismatch, from.Owner, t.Authority)
	}
	if from.Amount < t.Amount {
		return nil, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, from.Amount, t.Amount)
	}
	if from.Address.Equals(to.Address) {
		return mint, nil
	}
	if to.Amount+t.Amount < to.Amount {
		return nil, ErrOverflow
	}

	from.Amount -= t.Amount
	to.Amount += t.Amount
	if err := accounts.SaveTokenAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := accounts.SaveTokenAccount(ctx, to); err != nil {
		return nil, err
	}
	return mint, nil
}
