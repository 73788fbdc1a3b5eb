package rbac

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// Role is a named grant within a service. A role may inherit its parent's
// permissions; the owning role service guarantees the parent chain is
// acyclic, and ResolvePermissions bounds the walk anyway.
type Role struct {
	ID           string `json:"id"`
	ServiceID    string `json:"service_id"`
	Name         string `json:"name"`
	ParentRoleID string `json:"parent_role_id,omitempty"`
}

// Permission is a namespaced grant code within a service.
type Permission struct {
	ID        string `json:"id"`
	ServiceID string `json:"service_id"`
	Code      string `json:"code"`
}

// Permission codes are lowercase segments joined by ':', at least two
// segments, e.g. "webhook:write".
var permissionCodeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*(:[a-z][a-z0-9_]*)+$`)

// ValidatePermissionCode checks a code against the fixed grammar.
func ValidatePermissionCode(code string) error {
	if !permissionCodeRe.MatchString(code) {
		return fmt.Errorf("invalid permission code %q: want lowercase segments joined by ':'", code)
	}
	return nil
}

// RoleStore is the read-only view of the external role/permission store.
type RoleStore interface {
	RoleByID(ctx context.Context, roleID string) (*Role, error)
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// maxRoleDepth bounds the parent-role walk. The role service validates
// acyclicity; this keeps a corrupted store from looping us regardless.
const maxRoleDepth = 16

// ResolvePermissions returns the union of permission codes granted by the
// given roles including parent-role inheritance, deduplicated and sorted so
// issued claims are reproducible.
func ResolvePermissions(ctx context.Context, store RoleStore, roles []Role) ([]string, error) {
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	for _, role := range roles {
		current := role
		for depth := 0; ; depth++ {
			if depth >= maxRoleDepth {
				return nil, fmt.Errorf("role %s: parent chain exceeds depth %d", role.ID, maxRoleDepth)
			}
			if visited[current.ID] {
				break
			}
			visited[current.ID] = true

			perms, err := store.PermissionsForRole(ctx, current.ID)
			if err != nil {
				return nil, fmt.Errorf("permissions for role %s: %w", current.ID, err)
			}
			for _, p := range perms {
				seen[p.Code] = true
			}

			if current.ParentRoleID == "" {
				break
			}
			parent, err := store.RoleByID(ctx, current.ParentRoleID)
			if err != nil {
				return nil, fmt.Errorf("parent role %s: %w", current.ParentRoleID, err)
			}
			current = *parent
		}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// RoleNames returns the deduplicated, sorted names of the given roles.
func RoleNames(roles []Role) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}
