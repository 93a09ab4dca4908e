package handler

import (
	"github.com/labstack/echo/v4"

	"lokapasar/internal/domain/repository"
	"lokapasar/internal/infrastructure/firebase"
	"lokapasar/pkg/response"
)

// DevTokenHandler mints local JWTs so the API and WebSocket channel can be
// exercised without a Firebase project. Only routed in development.
type DevTokenHandler struct {
	devTokens *firebase.DevTokens
	userRepo  repository.UserRepository
}

func NewDevTokenHandler(devTokens *firebase.DevTokens, userRepo repository.UserRepository) *DevTokenHandler {
	return &DevTokenHandler{
		devTokens: devTokens,
		userRepo:  userRepo,
	}
}

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userRepo.GetByID(c.Request().Context(), req.UserID)
	if err != nil {
		return response.Error(c, err)
	}

	token, err := h.devTokens.Mint(user.ID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"token":   token,
		"user_id": user.ID,
	})
}
