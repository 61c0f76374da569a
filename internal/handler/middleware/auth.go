package middleware

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/radicle-dev/workstreams-api/internal/kv"
	"github.com/radicle-dev/workstreams-api/internal/service"
)

// SessionCookie is the cookie the /authorize endpoint sets; protected routes
// accept the token from it when no bearer header is present.
const SessionCookie = "SIWE-AUTH"

// ExtractToken pulls the session token from the request. An explicit bearer
// header always wins over the cookie.
func ExtractToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
	}

	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, true
	}

	return "", false
}

// RequireSession validates the presented token and stores the session record
// in fiber.Locals for downstream handlers.
func RequireSession(authService *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := ExtractToken(c)
		if !ok {
			// Fail before any store lookup happens
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthenticated",
			})
		}

		record, err := authService.Session(c.Context(), token)
		if err != nil {
			return sessionError(c, err)
		}

		c.Locals("session", record)
		c.Locals("token", token)

		return c.Next()
	}
}

// RequireOwner guards address-scoped mutations: the session address must
// exactly equal the :address route parameter. Address equality is the sole
// authorization policy.
func RequireOwner(authService *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Params("address")
		if !common.IsHexAddress(raw) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid address",
			})
		}
		owner := common.HexToAddress(raw)

		token, ok := ExtractToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthenticated",
			})
		}

		authorized, err := authService.Authorize(c.Context(), token, owner)
		if err != nil {
			return sessionError(c, err)
		}
		if !authorized {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "address mismatch",
			})
		}

		c.Locals("owner", owner)
		c.Locals("token", token)

		return c.Next()
	}
}

func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrSessionNotFound):
		// Expired and never-issued sessions report identically
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "session not found",
		})
	case errors.Is(err, kv.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "session store unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to verify session",
		})
	}
}
