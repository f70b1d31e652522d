package custody

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// SplToken behaves like the classic token program's plain transfer: the
// decimals carried by the transfer are not checked.
type SplToken struct{}

func NewSplToken() *SplToken {
	return &SplToken{}
}

func (p *SplToken) ID() solana.PublicKey {
	return TokenProgramID
}

func (p *SplToken) TransferChecked(ctx context.Context, accounts AccountStore, t Transfer) error {
	_, err := move(ctx, p.ID(), accounts, t)
	return err
}
