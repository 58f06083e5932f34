package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"swapit/internal/usecase"
	"swapit/pkg/response"
)

// EmailDirectory looks up the email the auth provider holds for a user.
type EmailDirectory interface {
	UserEmail(ctx context.Context, uid string) (string, error)
}

type ProfileHandler struct {
	profileUseCase *usecase.ProfileUseCase
	emails         EmailDirectory
}

// NewProfileHandler builds the profile handler. emails may be nil
// (development mode), in which case registration relies on the email in
// the request body alone.
func NewProfileHandler(profileUseCase *usecase.ProfileUseCase, emails EmailDirectory) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: profileUseCase,
		emails:         emails,
	}
}

type registerRequest struct {
	Nickname string `json:"nickname" validate:"required,max=30"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (h *ProfileHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	if req.Email == "" && h.emails != nil {
		// Fall back to the email the auth provider knows, best-effort.
		if email, err := h.emails.UserEmail(c.Request().Context(), uid); err == nil {
			req.Email = email
		}
	}

	profile, err := h.profileUseCase.Register(c.Request().Context(), uid, req.Nickname, req.Email)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, profile)
}

type updateNicknameRequest struct {
	Nickname string `json:"nickname" validate:"required,max=30"`
}

func (h *ProfileHandler) UpdateNickname(c echo.Context) error {
	var req updateNicknameRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	if err := h.profileUseCase.UpdateNickname(c.Request().Context(), uid, req.Nickname); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "updated"})
}

func (h *ProfileHandler) GetProfile(c echo.Context) error {
	uid := c.Get("uid").(string)

	profile, err := h.profileUseCase.Get(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, profile)
}
