package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"aegis-backend/internal/abac"
	"aegis-backend/internal/apperror"
	"aegis-backend/internal/authz"
	"aegis-backend/internal/rbac"
)

// AuthzHandler exposes the authorization decision point: resource services
// that do not embed the guard ask it whether a caller may perform an action.
type AuthzHandler struct {
	guard *authz.Guard
}

func NewAuthzHandler(guard *authz.Guard) *AuthzHandler {
	return &AuthzHandler{guard: guard}
}

type checkBody struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	Resource     map[string]any `json:"resource,omitempty"`
	Request      map[string]any `json:"request,omitempty"`
	Env          map[string]any `json:"env,omitempty"`
}

// Check handles POST /api/tenants/:tenantID/authz/check. A passing check
// returns authorized=true; a failing one surfaces the guard's 403.
func (h *AuthzHandler) Check(c *fiber.Ctx) error {
	caller := GetCaller(c)
	tenantID := c.Params("tenantID")

	var body checkBody
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	action, ok := rbac.ParseAction(body.Action)
	if !ok {
		return apperror.ValidationMsg("unknown action " + body.Action)
	}

	rctx := &abac.Context{
		Action:       body.Action,
		ResourceType: body.ResourceType,
		Subject: map[string]any{
			"id":    caller.Subject,
			"email": caller.Email,
			"roles": caller.Roles,
		},
		Resource: body.Resource,
		Request:  body.Request,
		Env:      body.Env,
	}

	in := rbac.Input{Action: action, Scope: rbac.TenantScope(tenantID)}
	if err := h.guard.Authorize(c.Context(), caller, in, rctx); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"authorized": true}})
}

// RegisterAuthzRoutes registers the decision endpoint behind the auth
// middleware.
func RegisterAuthzRoutes(app *fiber.App, h *AuthzHandler, authMW fiber.Handler) {
	app.Post("/api/tenants/:tenantID/authz/check", authMW, h.Check)
}
