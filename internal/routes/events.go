package routes

import (
	"github.com/gin-gonic/gin"

	"stakeledger/internal/handlers"
)

// SetupEventRoutes sets up the ledger event feed
func SetupEventRoutes(r *gin.Engine) {
	events := r.Group("/events")
	{
		events.GET("", handlers.ListEvents)
		events.GET("ws", handlers.StreamEvents)
	}
}
