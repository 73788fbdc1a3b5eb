package rbac

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

func TestValidatePermissionCode(t *testing.T) {
	valid := []string{"webhook:write", "service:read", "abac:publish", "billing:invoice:read", "a_b:c_d"}
	for _, code := range valid {
		if err := ValidatePermissionCode(code); err != nil {
			t.Fatalf("expected %q to be valid: %v", code, err)
		}
	}

	invalid := []string{"", "webhook", "Webhook:write", "webhook:", ":write", "webhook write", "webhook::write", "1abc:read"}
	for _, code := range invalid {
		if err := ValidatePermissionCode(code); err == nil {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

type fakeRoleStore struct {
	roles map[string]*Role
	perms map[string][]Permission
}

func (f *fakeRoleStore) RoleByID(_ context.Context, id string) (*Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s not found", id)
	}
	return r, nil
}

func (f *fakeRoleStore) PermissionsForRole(_ context.Context, id string) ([]Permission, error) {
	return f.perms[id], nil
}

func TestResolvePermissions_ParentInheritance(t *testing.T) {
	store := &fakeRoleStore{
		roles: map[string]*Role{
			"viewer": {ID: "viewer", Name: "viewer"},
			"editor": {ID: "editor", Name: "editor", ParentRoleID: "viewer"},
			"admin":  {ID: "admin", Name: "admin", ParentRoleID: "editor"},
		},
		perms: map[string][]Permission{
			"viewer": {{Code: "webhook:read"}},
			"editor": {{Code: "webhook:write"}, {Code: "webhook:read"}},
			"admin":  {{Code: "service:write"}},
		},
	}

	codes, err := ResolvePermissions(context.Background(), store, []Role{*store.roles["admin"]})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"service:write", "webhook:read", "webhook:write"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
}

func TestResolvePermissions_DeduplicatesAcrossRoles(t *testing.T) {
	store := &fakeRoleStore{
		roles: map[string]*Role{
			"a": {ID: "a", Name: "a"},
			"b": {ID: "b", Name: "b"},
		},
		perms: map[string][]Permission{
			"a": {{Code: "webhook:read"}},
			"b": {{Code: "webhook:read"}, {Code: "abac:read"}},
		},
	}

	codes, err := ResolvePermissions(context.Background(), store, []Role{*store.roles["a"], *store.roles["b"]})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"abac:read", "webhook:read"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
}

func TestResolvePermissions_CycleStops(t *testing.T) {
	// A corrupted store with a parent cycle must not loop; the visited set
	// terminates the walk with whatever was collected.
	store := &fakeRoleStore{
		roles: map[string]*Role{
			"a": {ID: "a", Name: "a", ParentRoleID: "b"},
			"b": {ID: "b", Name: "b", ParentRoleID: "a"},
		},
		perms: map[string][]Permission{
			"a": {{Code: "webhook:read"}},
			"b": {{Code: "webhook:write"}},
		},
	}

	codes, err := ResolvePermissions(context.Background(), store, []Role{*store.roles["a"]})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"webhook:read", "webhook:write"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
}

func TestRoleNames(t *testing.T) {
	roles := []Role{{Name: "editor"}, {Name: "admin"}, {Name: "editor"}}
	want := []string{"admin", "editor"}
	if got := RoleNames(roles); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
