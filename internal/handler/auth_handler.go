package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/radicle-dev/workstreams-api/internal/handler/middleware"
	"github.com/radicle-dev/workstreams-api/internal/kv"
	"github.com/radicle-dev/workstreams-api/internal/service"
	"github.com/radicle-dev/workstreams-api/internal/siwe"
	"github.com/radicle-dev/workstreams-api/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
	}
}

type AuthRequest struct {
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Authorize verifies a signed sign-in message and mints a session
// POST /authorize
func (h *AuthHandler) Authorize(c *fiber.Ctx) error {
	var req AuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Wallets commonly prefix the hex signature; normalize before decoding
	signature := strings.TrimPrefix(req.Signature, "0x")

	token, record, err := h.authService.Create(c.Context(), req.Message, signature)
	if err != nil {
		return authError(c, err)
	}

	// The cookie is the one token delivery channel; protected routes read it
	// back (or a bearer header carrying the same value). Its lifetime matches
	// the signed message's expiration, and so the store TTL.
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  *record.ExpirationTime,
		Secure:   true,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "authorized",
	})
}

func authError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, siwe.ErrMalformedMessage):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "malformed message",
		})
	case errors.Is(err, siwe.ErrMalformedSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "malformed signature",
		})
	case errors.Is(err, siwe.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid signature",
		})
	case errors.Is(err, service.ErrMissingExpiration):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "message has no expiration time",
		})
	case errors.Is(err, service.ErrMessageExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "message has expired",
		})
	case errors.Is(err, service.ErrNotYetValid):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "message is not yet valid",
		})
	case errors.Is(err, kv.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "session store unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create session",
		})
	}
}
