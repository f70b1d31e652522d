package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"stakeledger/internal/custody"
)

// Vault is the pool's authority over one of its custody accounts. The pool
// signs for itself, so there is no key to hand out: a Vault can only be built
// inside this package and only the state machine releases funds from it.
type Vault struct {
	pool     solana.PublicKey
	address  solana.PublicKey
	mint     *custody.Mint
	program  custody.TokenProgram
	accounts custody.AccountStore
}

func newVault(pool solana.PublicKey, address solana.PublicKey, mint *custody.Mint, program custody.TokenProgram, accounts custody.AccountStore) *Vault {
	return &Vault{
		pool:     pool,
		address:  address,
		mint:     mint,
		program:  program,
		accounts: accounts,
	}
}

// Address of the underlying token account.
func (v *Vault) Address() solana.PublicKey {
	return v.address
}

// Balance returns the vault's current token balance.
func (v *Vault) Balance(ctx context.Context) (uint64, error) {
	account, err := v.accounts.TokenAccount(ctx, v.address)
	if err != nil {
		return 0, custodyError(err)
	}
	return account.Amount, nil
}

// Release moves amount out of the vault to destination, authorized by the pool.
func (v *Vault) Release(ctx context.Context, amount uint64, destination solana.PublicKey) error {
	err := v.program.TransferChecked(ctx, v.accounts, custody.Transfer{
		From:      v.address,
		To:        destination,
		Mint:      v.mint.Address,
		Authority: v.pool,
		Amount:    amount,
		Decimals:  v.mint.Decimals,
	})
	return custodyError(err)
}

// receive moves amount from source into the vault, authorized by the source
// account's owner.
func (v *Vault) receive(ctx context.Context, source, owner solana.PublicKey, amount uint64) error {
	err := v.program.TransferChecked(ctx, v.accounts, custody.Transfer{
		From:      source,
		To:        v.address,
		Mint:      v.mint.Address,
		Authority: owner,
		Amount:    amount,
		Decimals:  v.mint.Decimals,
	})
	return custodyError(err)
}
