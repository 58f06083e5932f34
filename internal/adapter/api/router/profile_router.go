package router

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/adapter/api/handler"
	"swapit/internal/adapter/api/middleware"
)

func SetupProfileRouter(e *echo.Echo, profileHandler *handler.ProfileHandler, authMiddleware *middleware.AuthMiddleware) {
	profile := e.Group("/v1/profile")
	profile.Use(authMiddleware.Authenticate)
	profile.POST("", profileHandler.Register)
	profile.GET("", profileHandler.GetProfile)
	profile.PUT("/nickname", profileHandler.UpdateNickname)
}
