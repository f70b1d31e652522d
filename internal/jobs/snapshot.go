package jobs

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stakeledger/internal/models"
)

// getZeroSecondTime truncates t to the start of its minute.
func getZeroSecondTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// SnapshotPools records the current aggregates of every pool. A pool that
// fails is logged and skipped.
func SnapshotPools(db *gorm.DB, now time.Time) (int, error) {
	log.Info("> 开始记录质押池快照")

	var pools []models.StakePool
	if err := db.Find(&pools).Error; err != nil {
		log.Errorf("> 查询质押池失败: %v", err)
		return 0, err
	}

	takenAt := getZeroSecondTime(now)
	recorded := 0
	for _, pool := range pools {
		var stakers int64
		if err := db.Model(&models.UserStake{}).
			Where("pool = ? AND staked_amount > 0", pool.Address).
			Count(&stakers).Error; err != nil {
			log.Errorf("> 统计质押池 %s 的质押人数失败: %v", pool.Address, err)
			continue
		}

		var vault models.TokenAccount
		err := db.Where("account_address = ?", pool.RewardVault).First(&vault).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("> 查询质押池 %s 的奖励金库失败: %v", pool.Address, err)
			continue
		}

		snapshot := models.PoolSnapshot{
			PoolAddress:        pool.Address,
			TotalStaked:        pool.TotalStaked,
			RewardRate:         pool.RewardRate,
			RewardVaultBalance: vault.Amount,
			StakerCount:        stakers,
			Paused:             pool.Paused,
			TakenAt:            takenAt,
		}
		if err := db.Create(&snapshot).Error; err != nil {
			log.Errorf("> 保存质押池 %s 快照失败: %v", pool.Address, err)
			continue
		}
		recorded++
	}

	log.Infof("> 质押池快照记录完成, 共 %d 个", recorded)
	return recorded, nil
}
