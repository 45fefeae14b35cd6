package auth

import (
	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// Middleware guards REST routes with a bearer token and stashes the resolved
// identity in the request locals.
func Middleware(v *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := ParseBearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "not authorized, no token")
		}
		id, err := v.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "not authorized, token failed")
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// IdentityFromCtx returns the identity stored by Middleware.
func IdentityFromCtx(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(identityKey).(Identity)
	return id, ok
}
