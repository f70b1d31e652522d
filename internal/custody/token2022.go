package custody

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Token2022 enforces transfer_checked semantics: the caller must state the
// mint's decimals.
type Token2022 struct{}

func NewToken2022() *Token2022 {
	return &Token2022{}
}

func (p *Token2022) ID() solana.PublicKey {
	return Token2022ProgramID
}

func (p *Token2022) TransferChecked(ctx context.Context, accounts AccountStore, t Transfer) error {
	mint, err := accounts.Mint(ctx, t.Mint)
	if err != nil {
		return err
	}
	if mint.Decimals != t.Decimals {
		return fmt.Errorf("%w: mint has %d, transfer has %d", ErrDecimalsMismatch, mint.Decimals, t.Decimals)
	}
	_, err = move(ctx, p.ID(), accounts, t)
	return err
}
