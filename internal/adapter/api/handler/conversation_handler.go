package handler

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/usecase"
	"swapit/pkg/response"
)

type ConversationHandler struct {
	hub *usecase.SyncHub
}

func NewConversationHandler(hub *usecase.SyncHub) *ConversationHandler {
	return &ConversationHandler{
		hub: hub,
	}
}

type createConversationRequest struct {
	ItemID        string `json:"itemId" validate:"required"`
	ItemTitle     string `json:"itemTitle"`
	ItemImageURL  string `json:"itemImageUrl"`
	OwnerUID      string `json:"ownerUid" validate:"required"`
	OwnerNickname string `json:"ownerNickname"`
}

func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	conversationID, err := h.hub.Conversations(uid).CreateOrGetConversation(c.Request().Context(), usecase.CreateConversationInput{
		ItemID:        req.ItemID,
		ItemTitle:     req.ItemTitle,
		ItemImageURL:  req.ItemImageURL,
		OwnerUID:      req.OwnerUID,
		OwnerNickname: req.OwnerNickname,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"conversationId": conversationID})
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	uid := c.Get("uid").(string)

	rows, err := h.hub.Conversations(uid).ListConversations(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, rows)
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	message, err := h.hub.Conversations(uid).SendMessage(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ConversationHandler) ListMessages(c echo.Context) error {
	uid := c.Get("uid").(string)

	messages, err := h.hub.Conversations(uid).Messages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *ConversationHandler) MarkSeen(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.hub.Conversations(uid).MarkSeen(c.Request().Context(), c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "seen"})
}

func (h *ConversationHandler) DeleteConversation(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.hub.Conversations(uid).DeleteConversation(c.Request().Context(), c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted"})
}
