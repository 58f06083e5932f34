package router

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/adapter/api/handler"
	"swapit/internal/adapter/api/middleware"
)

func SetupItemRouter(e *echo.Echo, itemHandler *handler.ItemHandler, swipeHandler *handler.SwipeHandler, authMiddleware *middleware.AuthMiddleware) {
	items := e.Group("/v1/items")
	items.Use(authMiddleware.Authenticate)
	items.POST("", itemHandler.CreateItem)
	items.GET("/mine", itemHandler.MyItems)
	items.GET("/:id", itemHandler.GetItem)
	items.PUT("/:id", itemHandler.UpdateItem)
	items.DELETE("/:id", itemHandler.DeleteItem)

	swipes := e.Group("/v1/swipes")
	swipes.Use(authMiddleware.Authenticate)
	swipes.POST("/:itemId", swipeHandler.Swipe)
}
