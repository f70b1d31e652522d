package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stakeledger/internal/models"
	dbconfig "stakeledger/pkg/config"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// queryLimit reads ?limit=, clamped to [1, maxPageSize].
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultPageSize, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return 0, false
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, true
}

// loadPool fetches the pool row named by the :address parameter, writing
// the error response itself when it fails.
func loadPool(c *gin.Context) (*models.StakePool, bool) {
	address, ok := paramKey(c, "address")
	if !ok {
		return nil, false
	}
	var pool models.StakePool
	if err := dbconfig.DB.Where("address = ?", address.String()).First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pool not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return &pool, true
}

// ListPools returns every pool
func ListPools(c *gin.Context) {
	var pools []models.StakePool
	if err := dbconfig.DB.Order("id").Find(&pools).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mints := make([]string, 0, len(pools))
	for _, p := range pools {
		mints = append(mints, p.StakingMint)
	}
	decimals := mintDecimals(mints...)

	resp := make([]PoolResp, 0, len(pools))
	for i := range pools {
		resp = append(resp, poolResp(&pools[i], decimals))
	}
	c.JSON(http.StatusOK, resp)
}

// GetPool returns one pool by address
func GetPool(c *gin.Context) {
	pool, ok := loadPool(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, poolResp(pool, mintDecimals(pool.StakingMint)))
}

// ListPositions returns the positions of a pool, largest stake first
func ListPositions(c *gin.Context) {
	pool, ok := loadPool(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	var positions []models.UserStake
	if err := dbconfig.DB.Where("pool = ?", pool.Address).
		Order("staked_amount DESC").Order("id").
		Limit(limit).
		Find(&positions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stakingDecimals := mintDecimals(pool.StakingMint)[pool.StakingMint]
	resp := make([]PositionResp, 0, len(positions))
	for i := range positions {
		resp = append(resp, positionRespFromModel(&positions[i], stakingDecimals))
	}
	c.JSON(http.StatusOK, resp)
}

// GetPositionPreview returns owner's position with what could be claimed now
func GetPositionPreview(c *gin.Context) {
	pool, ok := paramKey(c, "address")
	if !ok {
		return
	}
	owner, ok := paramKey(c, "owner")
	if !ok {
		return
	}

	preview, err := stakingLedger.Preview(c.Request.Context(), pool, owner)
	if err != nil {
		respondError(c, err)
		return
	}

	stakingMint := preview.Pool.StakingMint.String()
	rewardMint := preview.Pool.RewardMint.String()
	decimals := mintDecimals(stakingMint, rewardMint)
	c.JSON(http.StatusOK, PreviewResp{
		Position:           positionResp(preview.Position, decimals[stakingMint]),
		Claimable:          preview.Claimable,
		ClaimableUI:        uiAmount(preview.Claimable, decimals[rewardMint]),
		UnlockTime:         preview.UnlockTime,
		Unlocked:           preview.Unlocked,
		RewardVaultBalance: preview.RewardVaultBalance,
		Now:                preview.Now,
	})
}

// ListPoolSnapshots returns the most recent snapshots of a pool
func ListPoolSnapshots(c *gin.Context) {
	pool, ok := loadPool(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	var snapshots []models.PoolSnapshot
	if err := dbconfig.DB.Where("pool_address = ?", pool.Address).
		Order("taken_at DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// GetPoolStats returns the indexed activity counters of a pool. A pool the
// indexer has not seen yet reports zeros.
func GetPoolStats(c *gin.Context) {
	pool, ok := loadPool(c)
	if !ok {
		return
	}

	stat := models.PoolActivityStat{PoolAddress: pool.Address}
	err := dbconfig.DB.Where("pool_address = ?", pool.Address).First(&stat).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stat)
}
