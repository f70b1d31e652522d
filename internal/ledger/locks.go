package ledger

import (
	"github.com/gagliardetto/solana-go"
	"github.com/puzpuzpuz/xsync/v4"
)

// Locks grants exclusive use of records to one operation at a time. A
// request for a record that is already held fails right away; callers are
// expected to resubmit.
type Locks struct {
	held *xsync.Map[solana.PublicKey, struct{}]
}

func NewLocks() *Locks {
	return &Locks{held: xsync.NewMap[solana.PublicKey, struct{}]()}
}

// Acquire takes every key or none. The returned func releases them.
func (l *Locks) Acquire(keys ...solana.PublicKey) (func(), error) {
	taken := make([]solana.PublicKey, 0, len(keys))
	release := func() {
		for _, k := range taken {
			l.held.Delete(k)
		}
	}

	seen := make(map[solana.PublicKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, loaded := l.held.LoadOrStore(k, struct{}{}); loaded {
			release()
			return nil, ErrAccountInUse
		}
		taken = append(taken, k)
	}
	return release, nil
}

// Held reports whether key is currently locked.
func (l *Locks) Held(key solana.PublicKey) bool {
	_, ok := l.held.Load(key)
	return ok
}
