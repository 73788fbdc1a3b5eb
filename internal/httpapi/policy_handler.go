package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"aegis-backend/internal/abac"
	"aegis-backend/internal/apperror"
	"aegis-backend/internal/rbac"
)

// PolicyHandler is the administrative surface for tenant ABAC policies.
// Every operation passes an RBAC check for the matching abac action before
// it reaches the policy engine.
type PolicyHandler struct {
	cfg rbac.Config
	svc *abac.Service
}

func NewPolicyHandler(cfg rbac.Config, svc *abac.Service) *PolicyHandler {
	return &PolicyHandler{cfg: cfg, svc: svc}
}

func (h *PolicyHandler) enforce(c *fiber.Ctx, action rbac.PolicyAction, tenantID string) error {
	return rbac.Enforce(h.cfg, GetCaller(c), rbac.Input{
		Action: action,
		Scope:  rbac.TenantScope(tenantID),
	})
}

// List handles GET /api/tenants/:tenantID/policies.
func (h *PolicyHandler) List(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacRead, tenantID); err != nil {
		return err
	}

	set, versions, err := h.svc.List(c.Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"policy_set": set,
		"versions":   versions,
	}})
}

type policyBody struct {
	Document   abac.Document `json:"document"`
	ChangeNote string        `json:"change_note"`
}

// Create handles POST /api/tenants/:tenantID/policies.
func (h *PolicyHandler) Create(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacWrite, tenantID); err != nil {
		return err
	}

	var body policyBody
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	caller := GetCaller(c)
	version, err := h.svc.Create(c.Context(), tenantID, body.Document, body.ChangeNote, caller.Subject)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": version})
}

// Update handles PUT /api/tenants/:tenantID/policies/:versionID.
func (h *PolicyHandler) Update(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacWrite, tenantID); err != nil {
		return err
	}

	var body policyBody
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	version, err := h.svc.Update(c.Context(), tenantID, c.Params("versionID"), body.Document, body.ChangeNote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": version})
}

type publishBody struct {
	Mode string `json:"mode"`
}

// Publish handles POST /api/tenants/:tenantID/policies/:versionID/publish.
func (h *PolicyHandler) Publish(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacPublish, tenantID); err != nil {
		return err
	}

	var body publishBody
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	mode, err := abac.ParseMode(body.Mode)
	if err != nil {
		return apperror.ValidationMsg(err.Error())
	}

	version, err := h.svc.Publish(c.Context(), tenantID, c.Params("versionID"), mode)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": version})
}

// Rollback handles POST /api/tenants/:tenantID/policies/:versionID/rollback.
func (h *PolicyHandler) Rollback(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacPublish, tenantID); err != nil {
		return err
	}

	var body publishBody
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	mode, err := abac.ParseMode(body.Mode)
	if err != nil {
		return apperror.ValidationMsg(err.Error())
	}

	version, err := h.svc.Rollback(c.Context(), tenantID, c.Params("versionID"), mode)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": version})
}

// Simulate handles POST /api/tenants/:tenantID/policies/simulate.
func (h *PolicyHandler) Simulate(c *fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if err := h.enforce(c, rbac.ActionAbacSimulate, tenantID); err != nil {
		return err
	}

	var body abac.SimulationInput
	if err := c.BodyParser(&body); err != nil {
		return apperror.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	result, err := h.svc.Simulate(c.Context(), tenantID, body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// RegisterPolicyRoutes registers the ABAC admin routes behind the auth
// middleware.
func RegisterPolicyRoutes(app *fiber.App, h *PolicyHandler, authMW fiber.Handler) {
	grp := app.Group("/api/tenants/:tenantID/policies", authMW)
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Post("/simulate", h.Simulate)
	grp.Put("/:versionID", h.Update)
	grp.Post("/:versionID/publish", h.Publish)
	grp.Post("/:versionID/rollback", h.Rollback)
}
