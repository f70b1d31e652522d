package routes

import (
	"github.com/gin-gonic/gin"

	"stakeledger/internal/handlers"
)

// SetupPoolRoutes sets up pool reads and the signed staking operations
func SetupPoolRoutes(r *gin.Engine, signed gin.HandlersChain) {
	pools := r.Group("/pools")
	{
		pools.GET("", handlers.ListPools)
		pools.GET(":address", handlers.GetPool)
		pools.GET(":address/positions", handlers.ListPositions)
		pools.GET(":address/positions/:owner", handlers.GetPositionPreview)
		pools.GET(":address/snapshots", handlers.ListPoolSnapshots)
		pools.GET(":address/stats", handlers.GetPoolStats)
	}

	ops := r.Group("/pools", signed...)
	{
		ops.POST("", handlers.InitializePool)
		ops.POST(":address/stake", handlers.Stake)
		ops.POST(":address/unstake", handlers.Unstake)
		ops.POST(":address/claim", handlers.ClaimRewards)
		ops.POST(":address/fund", handlers.FundRewards)
		ops.PUT(":address/reward-rate", handlers.UpdateRewardRate)
		ops.PUT(":address/paused", handlers.SetPaused)
	}
}
