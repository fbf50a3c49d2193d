package place

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the saved-place endpoints. Saved places are personal
// data, so every route runs behind the auth middleware. The nearby route
// must be registered before the parameterized ones or fiber would capture
// "nearby" as a place id.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Place
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" || req.Label == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id and label required")
		}
		p, err := svc.CreatePlace(c.Context(), req)
		if err != nil {
			if errors.Is(err, ErrBadKind) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Get("/:userID/nearby", authMiddleware, func(c *fiber.Ctx) error {
		lat, _ := strconv.ParseFloat(c.Query("lat"), 64)
		lng, _ := strconv.ParseFloat(c.Query("lng"), 64)
		radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)
		if radius == 0 {
			radius = 2
		}
		results, err := svc.Nearby(c.Context(), c.Params("userID"), lat, lng, radius)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(results)
	})

	r.Get("/:userID/:id", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.GetPlace(c.Context(), c.Params("userID"), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Get("/:userID", authMiddleware, func(c *fiber.Ctx) error {
		places, err := svc.ListPlaces(c.Context(), c.Params("userID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(places)
	})

	r.Put("/:userID/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Place
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.UpdatePlace(c.Context(), c.Params("userID"), c.Params("id"), req)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrBadKind):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Delete("/:userID/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeletePlace(c.Context(), c.Params("userID"), c.Params("id")); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
