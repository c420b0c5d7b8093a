// Package middleware contains Fiber middlewares shared by the HTTP handlers.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderUserID carries the caller identity resolved by the upstream auth layer.
const HeaderUserID = "X-User-ID"

const actorKey = "actor"

// RequireActor rejects requests without a valid caller identity and stores the
// parsed id for handlers.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Get(HeaderUserID))
		if err != nil || id == uuid.Nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Access is denied."})
		}
		c.Locals(actorKey, id)
		return c.Next()
	}
}

// Actor returns the identity stored by RequireActor, or uuid.Nil.
func Actor(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(actorKey).(uuid.UUID)
	return id
}
