package router

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/adapter/api/handler"
	"swapit/internal/adapter/api/middleware"
)

func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware) {
	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)
	conversations.POST("", conversationHandler.CreateConversation)
	conversations.GET("", conversationHandler.ListConversations)
	conversations.POST("/:id/messages", conversationHandler.SendMessage)
	conversations.GET("/:id/messages", conversationHandler.ListMessages)
	conversations.PUT("/:id/seen", conversationHandler.MarkSeen)
	conversations.DELETE("/:id", conversationHandler.DeleteConversation)
}
