package routes

import (
	"github.com/gin-gonic/gin"

	"stakeledger/internal/handlers"
)

// SetupTokenAccountRoutes sets up custody account reads and the operator
// registry for mirrored mints and accounts
func SetupTokenAccountRoutes(r *gin.Engine, operator gin.HandlersChain) {
	r.GET("/token-accounts/:address", handlers.GetTokenAccount)

	registry := r.Group("", operator...)
	{
		registry.POST("/mints", handlers.RegisterMint)
		registry.POST("/token-accounts", handlers.RegisterTokenAccount)
		registry.POST("/token-accounts/:address/credit", handlers.CreditTokenAccount)
	}
}
