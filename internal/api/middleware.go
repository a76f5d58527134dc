package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/euOvictin/messaging-service/internal/auth"
	"github.com/euOvictin/messaging-service/internal/domain"
)

const identityKey = "identity"

// requireAuth resolves the bearer token into an identity before any handler
// in the group runs.
func requireAuth(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": domain.NewError(domain.CodeUnauthorized, "authentication token missing"),
			})
		}
		ident, err := verifier.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": domain.NewError(domain.CodeUnauthorized, "authentication token invalid or expired"),
			})
		}
		c.Locals(identityKey, ident)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) *auth.Identity {
	ident, _ := c.Locals(identityKey).(*auth.Identity)
	return ident
}
