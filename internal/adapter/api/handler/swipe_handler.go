package handler

import (
	"github.com/labstack/echo/v4"

	"swapit/internal/usecase"
	"swapit/pkg/response"
)

type SwipeHandler struct {
	hub *usecase.SyncHub
}

func NewSwipeHandler(hub *usecase.SyncHub) *SwipeHandler {
	return &SwipeHandler{
		hub: hub,
	}
}

type swipeRequest struct {
	Action string `json:"action" validate:"required,oneof=like dislike"`
}

func (h *SwipeHandler) Swipe(c echo.Context) error {
	var req swipeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	if err := h.hub.Swipe(c.Request().Context(), uid, c.Param("itemId"), req.Action); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "recorded"})
}
