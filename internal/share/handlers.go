package share

import (
	"errors"

	"backend-gocars/internal/safety"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the trip-share endpoints. Resolving a token is the
// one deliberately public read: the contact holding the link has no account.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			UserID    string `json:"user_id"`
			SessionID string `json:"session_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" || req.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id and session_id required")
		}
		link, err := svc.CreateLink(c.Context(), req.UserID, req.SessionID)
		if err != nil {
			if errors.Is(err, safety.ErrSessionNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(link)
	})

	r.Get("/links/:userID", authMiddleware, func(c *fiber.Ctx) error {
		links, err := svc.Links(c.Context(), c.Params("userID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(links)
	})

	r.Get("/:token", func(c *fiber.Ctx) error {
		view, err := svc.Resolve(c.Context(), c.Params("token"))
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrExpired), errors.Is(err, ErrEnded):
				return fiber.NewError(fiber.StatusGone, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(view)
	})

	r.Delete("/:userID/:token", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Revoke(c.Context(), c.Params("userID"), c.Params("token")); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
