package evidence

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, attachCapture(svc))
	r.Get("/:incidentID", authMiddleware, listCaptures(svc))
}

func attachCapture(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			IncidentID string `json:"incident_id"`
			UserID     string `json:"user_id"`
			Kind       string `json:"kind"`
			URL        string `json:"url"`
			Note       string `json:"note"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.IncidentID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "incident_id is required")
		}
		if body.Kind == "" {
			body.Kind = "note"
		}

		capture, err := svc.Attach(c.Context(), body.IncidentID, body.UserID, body.Kind, body.URL, body.Note)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(capture)
	}
}

func listCaptures(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		captures, err := svc.ForIncident(c.Context(), c.Params("incidentID"))
		if err != nil {
			return err
		}
		return c.JSON(captures)
	}
}
