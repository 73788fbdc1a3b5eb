package exchange

import (
	"context"
	"log"

	"github.com/google/uuid"

	"aegis-backend/internal/apperror"
	"aegis-backend/internal/rbac"
	"aegis-backend/internal/token"
)

// Directory is the read-only view of tenant membership and role assignment,
// owned by an external store.
type Directory interface {
	rbac.RoleStore
	IsMember(ctx context.Context, subjectID, tenantID string) (bool, error)
	RolesForMember(ctx context.Context, subjectID, tenantID string) ([]rbac.Role, error)
}

// Grant is the result of a successful exchange: the minted tenant-access
// token and its resolved claims, serialized for the RPC response.
type Grant struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	TenantID    string   `json:"tenant_id"`
	Audience    string   `json:"audience"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id"`
}

// ValidationResult is the read-only answer for resource servers checking a
// tenant-access token.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Introspection is the RFC 7662-shaped token view. active=false carries no
// other fields, so a rejected token reveals nothing about why.
type Introspection struct {
	Active      bool     `json:"active"`
	Subject     string   `json:"sub,omitempty"`
	Email       string   `json:"email,omitempty"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
	Issuer      string   `json:"iss,omitempty"`
	Audience    string   `json:"aud,omitempty"`
}

// Service converts a verified platform identity into a tenant-scoped access
// grant. It is stateless: no session row is written, and the same inputs
// always mint an equivalent token.
type Service struct {
	codec            *token.Codec
	dir              Directory
	allowedAudiences []string
}

func NewService(codec *token.Codec, dir Directory, allowedAudiences []string) *Service {
	return &Service{codec: codec, dir: dir, allowedAudiences: allowedAudiences}
}

// Exchange verifies the identity token, resolves the principal's roles and
// permissions in the tenant, and mints a tenant-access token for the service
// audience. Roles are names, permissions are deduplicated sorted codes.
func (s *Service) Exchange(ctx context.Context, identityToken, tenantID, serviceAudience string) (*Grant, error) {
	if err := s.checkAudience(serviceAudience); err != nil {
		return nil, err
	}

	claims, err := s.codec.VerifyIdentity(identityToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid or expired token")
	}

	member, err := s.dir.IsMember(ctx, claims.Subject, tenantID)
	if err != nil {
		return nil, s.internal("membership lookup", err)
	}
	if !member {
		return nil, apperror.Forbidden("No membership in tenant")
	}

	roles, err := s.dir.RolesForMember(ctx, claims.Subject, tenantID)
	if err != nil {
		return nil, s.internal("role lookup", err)
	}
	permissions, err := rbac.ResolvePermissions(ctx, s.dir, roles)
	if err != nil {
		return nil, s.internal("permission resolution", err)
	}

	roleNames := rbac.RoleNames(roles)
	sessionID := uuid.New().String()

	signed, err := s.codec.IssueTenantAccess(token.TenantAccessParams{
		SubjectID:       claims.Subject,
		Email:           claims.Email,
		TenantID:        tenantID,
		ServiceAudience: serviceAudience,
		Roles:           roleNames,
		Permissions:     permissions,
		SessionID:       sessionID,
	})
	if err != nil {
		return nil, s.internal("mint tenant access token", err)
	}

	return &Grant{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.codec.AccessTTL().Seconds()),
		TenantID:    tenantID,
		Audience:    serviceAudience,
		Roles:       roleNames,
		Permissions: permissions,
		SessionID:   sessionID,
	}, nil
}

// Validate checks a tenant-access token against an expected audience without
// minting anything.
func (s *Service) Validate(_ context.Context, accessToken, audience string) *ValidationResult {
	claims, err := s.codec.VerifyTenantAccess(accessToken, audience)
	if err != nil {
		return &ValidationResult{Valid: false, Error: "invalid token"}
	}
	return &ValidationResult{
		Valid:    true,
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
	}
}

// Introspect returns a read-only view of either token kind. Tenant-access
// tokens are accepted only for audiences on the configured allow-list; with
// an empty allow-list (non-production only) the audience check is skipped,
// matching verification.
func (s *Service) Introspect(_ context.Context, tokenStr string) *Introspection {
	if claims, err := s.codec.VerifyIdentity(tokenStr); err == nil {
		return &Introspection{
			Active:    true,
			Subject:   claims.Subject,
			Email:     claims.Email,
			IssuedAt:  claims.IssuedAt.Unix(),
			ExpiresAt: claims.ExpiresAt.Unix(),
			Issuer:    claims.Issuer,
			Audience:  token.PlatformAudience,
		}
	}

	if len(s.allowedAudiences) == 0 {
		if claims, err := s.codec.VerifyTenantAccess(tokenStr, ""); err == nil {
			aud := ""
			if len(claims.Audience) > 0 {
				aud = claims.Audience[0]
			}
			return tenantIntrospection(claims, aud)
		}
	}
	for _, aud := range s.allowedAudiences {
		claims, err := s.codec.VerifyTenantAccess(tokenStr, aud)
		if err != nil {
			continue
		}
		return tenantIntrospection(claims, aud)
	}

	return &Introspection{Active: false}
}

func tenantIntrospection(claims *token.TenantAccessClaims, aud string) *Introspection {
	return &Introspection{
		Active:      true,
		Subject:     claims.Subject,
		Email:       claims.Email,
		TenantID:    claims.TenantID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		IssuedAt:    claims.IssuedAt.Unix(),
		ExpiresAt:   claims.ExpiresAt.Unix(),
		Issuer:      claims.Issuer,
		Audience:    aud,
	}
}

// checkAudience rejects minting for the platform audience (identity tokens
// come from primary authentication only) and, when an allow-list is
// configured, for audiences not on it.
func (s *Service) checkAudience(serviceAudience string) *apperror.AppError {
	if serviceAudience == token.PlatformAudience {
		return apperror.ValidationMsg("service_audience cannot be the platform audience")
	}
	if len(s.allowedAudiences) == 0 {
		return nil
	}
	for _, aud := range s.allowedAudiences {
		if aud == serviceAudience {
			return nil
		}
	}
	return apperror.ValidationMsg("service_audience is not on the audience allow-list")
}

func (s *Service) internal(op string, err error) *apperror.AppError {
	log.Printf("ERROR: exchange: %s: %v", op, err)
	return apperror.Internal("Token exchange failure")
}
