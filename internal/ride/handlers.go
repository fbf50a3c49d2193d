package ride

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRideRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.RiderID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "rider_id is required")
		}
		ride, err := svc.CreateRide(c.Context(), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ride)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
		}
		rides, err := svc.RidesForUser(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(rides)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		ride, err := svc.Ride(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(ride)
	})

	r.Patch("/:id/status", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		ride, err := svc.UpdateStatus(c.Context(), c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(ride)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrRideNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrRideState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
