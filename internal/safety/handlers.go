package safety

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-gocars/internal/shared/geo"
)

// RideSource resolves a ride's planned route when a monitoring request
// names a ride instead of carrying the route inline.
type RideSource interface {
	PlannedRoute(ctx context.Context, rideID string) ([]geo.Point, error)
}

func RegisterRoutes(r fiber.Router, m *Monitor, rides RideSource, repo *Repo, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var req StartMonitoringRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}

		planned := req.PlannedRoute
		if len(planned) == 0 && req.RideID != "" && rides != nil {
			var err error
			planned, err = rides.PlannedRoute(c.Context(), req.RideID)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "ride route lookup failed: "+err.Error())
			}
		}

		sess, err := m.StartMonitoring(c.Context(), req.UserID, req.RideID, planned)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Delete("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		sess, err := m.StopMonitoring(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Get("/sessions", func(c *fiber.Ctx) error {
		if userID := c.Query("user_id"); userID != "" && repo != nil {
			sessions, err := repo.SessionsForUser(c.Context(), userID)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(sessions)
		}
		return c.JSON(m.ActiveSessions())
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		sess, err := m.Session(c.Params("id"))
		if errors.Is(err, ErrSessionNotFound) && repo != nil {
			sess, err = repo.SessionByID(c.Context(), c.Params("id"))
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/fixes", authMiddleware, func(c *fiber.Ctx) error {
		var fix RoutePoint
		if err := c.BodyParser(&fix); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sess, err := m.ProcessFix(c.Context(), c.Params("id"), fix)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/checkins", authMiddleware, func(c *fiber.Ctx) error {
		var req CheckInRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.OK == nil {
			return fiber.NewError(fiber.StatusBadRequest, "ok required")
		}
		checkIn, err := m.ManualCheckIn(c.Context(), c.Params("id"), *req.OK, fixFrom(req.Location))
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(checkIn)
	})

	r.Post("/sessions/:id/checkins/:checkinID/response", authMiddleware, func(c *fiber.Ctx) error {
		var req CheckInRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.OK == nil {
			return fiber.NewError(fiber.StatusBadRequest, "ok required")
		}
		checkIn, err := m.RespondCheckIn(c.Context(), c.Params("id"), c.Params("checkinID"), *req.OK, fixFrom(req.Location))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(checkIn)
	})

	r.Post("/sessions/:id/alerts/:alertID/acknowledge", authMiddleware, func(c *fiber.Ctx) error {
		var req AcknowledgeAlertRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.By == "" {
			return fiber.NewError(fiber.StatusBadRequest, "by required")
		}
		if err := m.AcknowledgeAlert(c.Context(), c.Params("id"), c.Params("alertID"), req.By); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/sessions/:id/alerts/:alertID/resolve", authMiddleware, func(c *fiber.Ctx) error {
		var req ResolveAlertRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := m.ResolveAlert(c.Context(), c.Params("id"), c.Params("alertID"), req.FalseAlarm); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func fixFrom(p *geo.Point) *RoutePoint {
	if p == nil {
		return nil
	}
	return &RoutePoint{Lat: p.Lat, Lng: p.Lng}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrAlertNotFound), errors.Is(err, ErrCheckInNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionNotActive), errors.Is(err, ErrAlertState), errors.Is(err, ErrCheckInState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
