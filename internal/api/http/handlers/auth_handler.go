package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthHandler exposes the admin login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	token, exp, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
