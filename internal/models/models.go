package models

// All lists every table, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&TokenMint{},
		&TokenAccount{},
		&StakePool{},
		&UserStake{},
		&LedgerEvent{},
		&EventSequence{},
		&PoolSnapshot{},
		&PoolActivityStat{},
	}
}
