package store

import (
	"context"
	"errors"
	"fmt"

	"aegis-backend/internal/clients"
	"aegis-backend/internal/rbac"
)

// Directory is the SQL-backed role/permission/membership store. It
// implements exchange.Directory, rbac.RoleStore and clients.Store.
type Directory struct {
	db *Store
}

func NewDirectory(db *Store) *Directory {
	return &Directory{db: db}
}

// IsMember reports whether the user has any role assignment in the tenant.
func (d *Directory) IsMember(ctx context.Context, subjectID, tenantID string) (bool, error) {
	pb := d.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"SELECT COUNT(*) AS n FROM _memberships WHERE user_id = %s AND tenant_id = %s",
		pb.Add(subjectID), pb.Add(tenantID))

	row, err := QueryRow(ctx, d.db.DB, query, pb.Params()...)
	if err != nil {
		return false, fmt.Errorf("membership count: %w", err)
	}
	return asInt(row["n"]) > 0, nil
}

// RolesForMember returns the roles assigned to the user in the tenant.
func (d *Directory) RolesForMember(ctx context.Context, subjectID, tenantID string) ([]rbac.Role, error) {
	pb := d.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`SELECT r.id, r.service_id, r.name, r.parent_role_id
		 FROM _memberships m
		 JOIN _roles r ON r.id = m.role_id
		 WHERE m.user_id = %s AND m.tenant_id = %s
		 ORDER BY r.name`,
		pb.Add(subjectID), pb.Add(tenantID))

	rows, err := QueryRows(ctx, d.db.DB, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("roles for member: %w", err)
	}

	roles := make([]rbac.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, scanRole(row))
	}
	return roles, nil
}

// RoleByID returns a single role.
func (d *Directory) RoleByID(ctx context.Context, roleID string) (*rbac.Role, error) {
	pb := d.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"SELECT id, service_id, name, parent_role_id FROM _roles WHERE id = %s",
		pb.Add(roleID))

	row, err := QueryRow(ctx, d.db.DB, query, pb.Params()...)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("role by id: %w", err)
	}
	role := scanRole(row)
	return &role, nil
}

// PermissionsForRole returns the permissions directly assigned to a role
// (parent inheritance is resolved by the caller).
func (d *Directory) PermissionsForRole(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	pb := d.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		`SELECT p.id, p.service_id, p.code
		 FROM _role_permissions rp
		 JOIN _permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = %s
		 ORDER BY p.code`,
		pb.Add(roleID))

	rows, err := QueryRows(ctx, d.db.DB, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("permissions for role: %w", err)
	}

	perms := make([]rbac.Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, rbac.Permission{
			ID:        asString(row["id"]),
			ServiceID: asString(row["service_id"]),
			Code:      asString(row["code"]),
		})
	}
	return perms, nil
}

// ClientByID returns a service client.
func (d *Directory) ClientByID(ctx context.Context, clientID string) (*clients.ServiceClient, error) {
	pb := d.db.Dialect.NewParamBuilder()
	query := fmt.Sprintf(
		"SELECT id, tenant_id, name, secret_hash, active FROM _service_clients WHERE id = %s",
		pb.Add(clientID))

	row, err := QueryRow(ctx, d.db.DB, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("client by id: %w", err)
	}

	return &clients.ServiceClient{
		ID:         asString(row["id"]),
		TenantID:   asString(row["tenant_id"]),
		Name:       asString(row["name"]),
		SecretHash: asString(row["secret_hash"]),
		Active:     asBool(row["active"]),
	}, nil
}

func scanRole(row map[string]any) rbac.Role {
	return rbac.Role{
		ID:           asString(row["id"]),
		ServiceID:    asString(row["service_id"]),
		Name:         asString(row["name"]),
		ParentRoleID: asString(row["parent_role_id"]),
	}
}
