package exchange

import (
	"github.com/gofiber/fiber/v2"

	"aegis-backend/internal/apperror"
)

// Handler exposes the token-exchange RPC boundary.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Exchange handles POST /api/token/exchange.
func (h *Handler) Exchange(c *fiber.Ctx) error {
	var body struct {
		IdentityToken   string `json:"identity_token"`
		TenantID        string `json:"tenant_id"`
		ServiceAudience string `json:"service_audience"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.IdentityToken == "" || body.TenantID == "" || body.ServiceAudience == "" {
		return apperror.ValidationMsg("identity_token, tenant_id and service_audience are required")
	}

	grant, err := h.svc.Exchange(c.Context(), body.IdentityToken, body.TenantID, body.ServiceAudience)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grant})
}

// Validate handles POST /api/token/validate.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var body struct {
		Token    string `json:"token"`
		Audience string `json:"audience"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Token == "" || body.Audience == "" {
		return apperror.ValidationMsg("token and audience are required")
	}

	return c.JSON(fiber.Map{"data": h.svc.Validate(c.Context(), body.Token, body.Audience)})
}

// Introspect handles POST /api/token/introspect.
func (h *Handler) Introspect(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Token == "" {
		return apperror.ValidationMsg("token is required")
	}

	return c.JSON(fiber.Map{"data": h.svc.Introspect(c.Context(), body.Token)})
}

// RegisterRoutes registers the token RPC routes on the given Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	grp := app.Group("/api/token")
	grp.Post("/exchange", h.Exchange)
	grp.Post("/validate", h.Validate)
	grp.Post("/introspect", h.Introspect)
}
