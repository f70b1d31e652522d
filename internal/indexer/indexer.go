// Package indexer folds relayed ledger events into per-pool activity stats.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stakeledger/internal/ledger"
	"stakeledger/internal/metrics"
	"stakeledger/internal/models"
)

// Apply adds ev to its pool's stats. Events at or below the pool's last
// indexed sequence number are skipped, so redelivery is harmless. It reports
// whether ev changed the stats.
func Apply(db *gorm.DB, ev models.LedgerEvent) (bool, error) {
	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var stat models.PoolActivityStat
		err := tx.Where("pool_address = ?", ev.Pool).First(&stat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stat = models.PoolActivityStat{PoolAddress: ev.Pool}
		} else if err != nil {
			return err
		}

		if ev.ID <= stat.LastEventSeq {
			return nil
		}

		var volume *models.U64
		switch ledger.EventKind(ev.Kind) {
		case ledger.EventStake:
			stat.StakeCount++
			volume = &stat.TotalStakedVolume
		case ledger.EventUnstake:
			stat.UnstakeCount++
			volume = &stat.TotalUnstakedVolume
		case ledger.EventClaim:
			stat.ClaimCount++
			volume = &stat.TotalClaimed
		case ledger.EventRewardsFunded:
			stat.FundCount++
			volume = &stat.TotalFunded
		}
		if volume != nil {
			var saturated bool
			if *volume, saturated = addVolume(*volume, ev.Amount); saturated {
				log.Warnf("> indexer: pool %s %s volume saturated at event %d", ev.Pool, ev.Kind, ev.ID)
			}
		}
		stat.LastEventSeq = ev.ID
		stat.LastEventAt = ev.Timestamp
		applied = true
		return tx.Save(&stat).Error
	})
	return applied, err
}

// addVolume adds amount to a lifetime counter, pinning it at math.MaxUint64
// instead of wrapping. It reports whether the counter is pinned.
func addVolume(total, amount models.U64) (models.U64, bool) {
	sum := total + amount
	if sum < total {
		return math.MaxUint64, true
	}
	return sum, false
}

// Handler decodes queue messages and applies them to db.
func Handler(db *gorm.DB) func([]byte) error {
	return func(msg []byte) error {
		var ev models.LedgerEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			// A malformed message will never decode; dropping it keeps the queue moving.
			log.Errorf("> indexer: drop undecodable message: %v", err)
			return nil
		}
		if ev.ID == 0 || ev.Pool == "" {
			log.Errorf("> indexer: drop event without seq or pool: %s", string(msg))
			return nil
		}

		applied, err := Apply(db, ev)
		if err != nil {
			return fmt.Errorf("index event %d: %w", ev.ID, err)
		}
		metrics.EventIndexed(applied)
		log.WithFields(log.Fields{"seq": ev.ID, "kind": ev.Kind, "pool": ev.Pool, "applied": applied}).Debug("> indexer: event processed")
		return nil
	}
}
