package location

import (
	"github.com/gofiber/fiber/v2"

	"backend-gocars/internal/safety"
)

// RegisterRoutes mounts the device beacon endpoints. Rider apps POST their
// position here; the monitor and incident tracker read it back through the
// store.
func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, reportLocation(store))
	r.Get("/:userID", authMiddleware, lastLocation(store))
}

func reportLocation(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"user_id"`
			safety.RoutePoint
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
		}

		if err := store.Publish(c.Context(), body.UserID, body.RoutePoint); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func lastLocation(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fix, ok, err := store.Sample(c.Context(), c.Params("userID"))
		if err != nil {
			return err
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no recent location")
		}
		return c.JSON(fix)
	}
}
