package httpapi

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"aegis-backend/internal/apperror"
	"aegis-backend/internal/clients"
	"aegis-backend/internal/rbac"
	"aegis-backend/internal/token"
)

// AuthMiddleware returns a Fiber middleware that resolves the caller from
// the Authorization header: Bearer tokens become identity or tenant-access
// callers, Basic credentials become service-client callers. Tenant-access
// tokens are tried against every audience on the allow-list; with an empty
// allow-list (non-production only) the audience check is skipped.
func AuthMiddleware(codec *token.Codec, allowedAudiences []string, registry *clients.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperror.Unauthorized("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 {
			return apperror.Unauthorized("Invalid auth header format")
		}

		switch {
		case strings.EqualFold(parts[0], "Bearer"):
			caller := resolveBearer(codec, allowedAudiences, parts[1])
			if caller == nil {
				return apperror.Unauthorized("Invalid or expired token")
			}
			c.Locals("caller", caller)
			return c.Next()

		case strings.EqualFold(parts[0], "Basic"):
			if registry == nil {
				return apperror.Unauthorized("Invalid auth header format")
			}
			clientID, secret, ok := decodeBasic(parts[1])
			if !ok {
				return apperror.Unauthorized("Invalid auth header format")
			}
			caller, err := registry.Authenticate(c.Context(), clientID, secret)
			if err != nil {
				return err
			}
			c.Locals("caller", caller)
			return c.Next()
		}

		return apperror.Unauthorized("Invalid auth header format")
	}
}

func resolveBearer(codec *token.Codec, allowedAudiences []string, raw string) *rbac.Caller {
	if len(allowedAudiences) == 0 {
		if claims, err := codec.VerifyTenantAccess(raw, ""); err == nil {
			return tenantCaller(claims)
		}
	}
	for _, aud := range allowedAudiences {
		claims, err := codec.VerifyTenantAccess(raw, aud)
		if err != nil {
			continue
		}
		return tenantCaller(claims)
	}

	if claims, err := codec.VerifyIdentity(raw); err == nil {
		return &rbac.Caller{
			Kind:    rbac.CallerIdentity,
			Subject: claims.Subject,
			Email:   claims.Email,
		}
	}
	return nil
}

func tenantCaller(claims *token.TenantAccessClaims) *rbac.Caller {
	return &rbac.Caller{
		Kind:        rbac.CallerTenantAccess,
		Subject:     claims.Subject,
		Email:       claims.Email,
		TenantID:    claims.TenantID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
}

func decodeBasic(encoded string) (string, string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok || id == "" {
		return "", "", false
	}
	return id, secret, true
}

// GetCaller extracts the resolved caller from a Fiber context.
func GetCaller(c *fiber.Ctx) *rbac.Caller {
	caller, _ := c.Locals("caller").(*rbac.Caller)
	return caller
}
