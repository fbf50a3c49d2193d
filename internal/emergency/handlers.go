package emergency

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the incident endpoints on the provided group. The
// repo is optional; without it only incidents opened by this process are
// readable.
func RegisterRoutes(r fiber.Router, svc *Service, repo *Repo, authMiddleware fiber.Handler) {
	r.Post("/incidents", authMiddleware, createIncident(svc))
	r.Get("/incidents", listIncidents(svc, repo))
	r.Get("/incidents/:id", getIncident(svc, repo))
	r.Post("/incidents/:id/resolve", authMiddleware, resolveIncident(svc))
	r.Post("/incidents/:id/escalate", authMiddleware, escalateIncident(svc))
	r.Patch("/incidents/:id/responders/:responderID", authMiddleware, updateResponder(svc))
}

func createIncident(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateIncidentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
		}

		inc, err := svc.CreateIncident(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(inc)
	}
}

func listIncidents(svc *Service, repo *Repo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID != "" && repo != nil {
			incidents, err := repo.IncidentsForUser(c.Context(), userID)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(incidents)
		}
		return c.JSON(svc.OpenIncidents())
	}
}

func getIncident(svc *Service, repo *Repo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		inc, err := svc.Incident(c.Context(), id)
		if errors.Is(err, ErrIncidentNotFound) && repo != nil {
			inc, err = repo.IncidentByID(c.Context(), id)
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(inc)
	}
}

func resolveIncident(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ResolveIncidentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.ResolvedBy == "" {
			return fiber.NewError(fiber.StatusBadRequest, "resolved_by is required")
		}

		inc, err := svc.ResolveIncident(c.Context(), c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(inc)
	}
}

func escalateIncident(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req EscalateIncidentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		inc, err := svc.EscalateIncident(c.Context(), c.Params("id"), req.By, req.Reason)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(inc)
	}
}

func updateResponder(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req UpdateResponderRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		switch req.Status {
		case ResponderNotified, ResponderResponding, ResponderOnScene, ResponderCompleted:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid responder status")
		}

		inc, err := svc.UpdateResponder(c.Context(), c.Params("id"), c.Params("responderID"), req.Status)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(inc)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrIncidentNotFound), errors.Is(err, ErrResponderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyResolved):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrUserRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
