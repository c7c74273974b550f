package http

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		api.GET("/instruments", handler.ListInstruments)
		api.POST("/instruments", handler.CreateInstrument)
		api.POST("/instruments/refresh-prices", handler.RefreshPrices)
		api.GET("/instruments/:id", handler.GetInstrument)
		api.PUT("/instruments/:id", handler.UpdateInstrument)
		api.DELETE("/instruments/:id", handler.DeleteInstrument)
	}

	router.GET("/health", handler.Health)
	router.GET("/", handler.Root)
}
