package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/auth"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthHandler issues admin tokens.
type AuthHandler struct {
	tokens       *auth.TokenManager
	adminKeyHash string
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, adminKeyHash string) *AuthHandler {
	return &AuthHandler{tokens: tokens, adminKeyHash: adminKeyHash}
}

// Login POST /admin/login. Exchanges the admin key for a JWT.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if h.adminKeyHash == "" {
		return apperrors.NewUnauthorized("admin access is not configured")
	}

	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AdminKey == "" {
		return apperrors.NewValidationError("admin_key required", nil)
	}

	if err := auth.VerifyAdminKey(h.adminKeyHash, req.AdminKey); err != nil {
		return apperrors.NewUnauthorized("invalid admin key")
	}

	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, ExpiresAt: expiresAt}})
}
