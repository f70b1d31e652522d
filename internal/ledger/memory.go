package ledger

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"stakeledger/internal/custody"
)

type memoryState struct {
	mints     map[solana.PublicKey]custody.Mint
	accounts  map[solana.PublicKey]custody.Account
	pools     map[solana.PublicKey]Pool
	positions map[solana.PublicKey]Position
	events    []Event
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		mints:     maps.Clone(s.mints),
		accounts:  maps.Clone(s.accounts),
		pools:     maps.Clone(s.pools),
		positions: maps.Clone(s.positions),
		events:    append([]Event(nil), s.events...),
	}
}

// MemoryStore keeps all records in process memory. Atomic calls are
// serialized; each runs against a private copy that replaces the live state
// only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		mints:     make(map[solana.PublicKey]custody.Mint),
		accounts:  make(map[solana.PublicKey]custody.Account),
		pools:     make(map[solana.PublicKey]Pool),
		positions: make(map[solana.PublicKey]Position),
	}}
}

func (m *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memoryTx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// RegisterMint adds or replaces a mint.
func (m *MemoryStore) RegisterMint(mint custody.Mint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.mints[mint.Address] = mint
}

// PutTokenAccount adds or replaces a token account.
func (m *MemoryStore) PutTokenAccount(account custody.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.accounts[account.Address] = account
}

// Balance returns the amount held by a token account, or zero if it does not exist.
func (m *MemoryStore) Balance(address solana.PublicKey) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[address].Amount
}

// Events returns a copy of the event log in sequence order.
func (m *MemoryStore) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.state.events...)
}

// Positions returns every position of pool, ordered by address.
func (m *MemoryStore) Positions(pool solana.PublicKey) []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Position
	for _, p := range m.state.positions {
		if p.Pool.Equals(pool) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Mint(_ context.Context, address solana.PublicKey) (*custody.Mint, error) {
	mint, ok := t.state.mints[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", custody.ErrMintNotFound, address)
	}
	return &mint, nil
}

func (t *memoryTx) TokenAccount(_ context.Context, address solana.PublicKey) (*custody.Account, error) {
	account, ok := t.state.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", custody.ErrAccountNotFound, address)
	}
	return &account, nil
}

func (t *memoryTx) CreateTokenAccount(_ context.Context, account *custody.Account) error {
	if _, ok := t.state.accounts[account.Address]; ok {
		return fmt.Errorf("%w: %s", custody.ErrAccountExists, account.Address)
	}
	t.state.accounts[account.Address] = *account
	return nil
}

func (t *memoryTx) SaveTokenAccount(_ context.Context, account *custody.Account) error {
	if _, ok := t.state.accounts[account.Address]; !ok {
		return fmt.Errorf("%w: %s", custody.ErrAccountNotFound, account.Address)
	}
	t.state.accounts[account.Address] = *account
	return nil
}

func (t *memoryTx) Pool(_ context.Context, address solana.PublicKey) (*Pool, error) {
	pool, ok := t.state.pools[address]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return &pool, nil
}

func (t *memoryTx) CreatePool(_ context.Context, pool *Pool) error {
	if _, ok := t.state.pools[pool.Address]; ok {
		return ErrAlreadyInitialized
	}
	t.state.pools[pool.Address] = *pool
	return nil
}

func (t *memoryTx) SavePool(_ context.Context, pool *Pool) error {
	if _, ok := t.state.pools[pool.Address]; !ok {
		return ErrPoolNotFound
	}
	t.state.pools[pool.Address] = *pool
	return nil
}

func (t *memoryTx) Position(_ context.Context, address solana.PublicKey) (*Position, error) {
	pos, ok := t.state.positions[address]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return &pos, nil
}

func (t *memoryTx) GetOrCreatePosition(_ context.Context, fresh *Position) (PositionLoad, error) {
	if pos, ok := t.state.positions[fresh.Address]; ok {
		return PositionLoad{Position: &pos}, nil
	}
	t.state.positions[fresh.Address] = *fresh
	pos := *fresh
	return PositionLoad{Position: &pos, Created: true}, nil
}

func (t *memoryTx) SavePosition(_ context.Context, position *Position) error {
	if _, ok := t.state.positions[position.Address]; !ok {
		return ErrPositionNotFound
	}
	t.state.positions[position.Address] = *position
	return nil
}

func (t *memoryTx) AppendEvent(_ context.Context, ev *Event) error {
	ev.Seq = uint64(len(t.state.events)) + 1
	t.state.events = append(t.state.events, *ev)
	return nil
}
