package token

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PlatformAudience is the audience of identity tokens. Tenant-access tokens
// carry the target service's client id instead.
const PlatformAudience = "platform"

// ErrInvalidToken is the only error verification returns. Expired, tampered,
// wrong-audience and wrong-issuer tokens are indistinguishable to callers;
// the detailed cause is logged server-side only.
var ErrInvalidToken = errors.New("invalid token")

// IdentityClaims represent a platform-level principal, not scoped to any
// tenant. Audience is always "platform".
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// TenantAccessClaims represent a principal scoped to one tenant and one
// service audience, carrying resolved roles and permission codes. Claims are
// immutable once issued; revocation is by expiry only.
type TenantAccessClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	TenantID    string   `json:"tenant_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id,omitempty"`
}

// TenantAccessParams are the inputs for minting a tenant-access token.
type TenantAccessParams struct {
	SubjectID       string
	Email           string
	TenantID        string
	ServiceAudience string
	Roles           []string
	Permissions     []string
	SessionID       string
}

// Codec signs and verifies both token kinds with a symmetric key (HS256).
type Codec struct {
	issuer    string
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewCodec(issuer, secret string, accessTTL time.Duration) *Codec {
	return &Codec{
		issuer:    issuer,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL returns the configured token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueIdentity creates a signed platform identity token.
func (c *Codec) IssueIdentity(subjectID, email, displayName string) (string, error) {
	now := c.now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{PlatformAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Email:       email,
		DisplayName: displayName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// IssueTenantAccess creates a signed tenant-access token for the given
// service audience.
func (c *Codec) IssueTenantAccess(p TenantAccessParams) (string, error) {
	now := c.now()
	claims := TenantAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{p.ServiceAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Email:       p.Email,
		TenantID:    p.TenantID,
		Roles:       p.Roles,
		Permissions: p.Permissions,
		SessionID:   p.SessionID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign tenant access token: %w", err)
	}
	return signed, nil
}

// VerifyIdentity checks signature, issuer, the "platform" audience and
// expiry. Expiry is strict: a token verified exactly at its expiry instant
// is already expired.
func (c *Codec) VerifyIdentity(tokenStr string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	if err := c.parse(tokenStr, claims, PlatformAudience); err != nil {
		log.Printf("token: identity verification failed: %v", err)
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyTenantAccess checks signature, issuer and expiry. If expectedAudience
// is non-empty it must match the token audience exactly (case-sensitive);
// the empty-audience skip exists for non-production configurations only and
// config validation refuses it in production.
func (c *Codec) VerifyTenantAccess(tokenStr, expectedAudience string) (*TenantAccessClaims, error) {
	claims := &TenantAccessClaims{}
	if err := c.parse(tokenStr, claims, expectedAudience); err != nil {
		log.Printf("token: tenant access verification failed: %v", err)
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" {
		log.Printf("token: tenant access token without tenant_id claim")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims, expectedAudience string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if expectedAudience != "" {
		opts = append(opts, jwt.WithAudience(expectedAudience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token not valid")
	}
	return nil
}
