package router

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/adapter/api/handler"
	"swapit/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	profileHandler *handler.ProfileHandler,
	itemHandler *handler.ItemHandler,
	swipeHandler *handler.SwipeHandler,
	conversationHandler *handler.ConversationHandler,
	wsHandler *handler.WebSocketHandler,
) {
	SetupHealthRouter(e)
	SetupProfileRouter(e, profileHandler, authMiddleware)
	SetupItemRouter(e, itemHandler, swipeHandler, authMiddleware)
	SetupConversationRouter(e, conversationHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}
