package authz

import (
	"errors"
	"fmt"
)

// OrgRole is a user's role in an organization. Exactly one user per
// organization holds RoleOrgOwner.
type OrgRole string

const (
	RoleOrgOwner  OrgRole = "owner"
	RoleOrgAdmin  OrgRole = "admin"
	RoleOrgMember OrgRole = "member"
)

// IsAdministrative reports whether the role carries organization-wide
// administrative access, which implies full access to every workspace.
func (r OrgRole) IsAdministrative() bool {
	return r == RoleOrgOwner || r == RoleOrgAdmin
}

// WorkspaceRole is a user's role within a single workspace.
type WorkspaceRole string

const (
	RoleManager WorkspaceRole = "manager"
	RoleEditor  WorkspaceRole = "editor"
	RoleViewer  WorkspaceRole = "viewer"
)

// Permission is a string-based permission scope checked against a role's
// allow-list.
type Permission string

const (
	PermissionInviteMembers   Permission = "members.invite"
	PermissionRemoveMembers   Permission = "members.remove"
	PermissionChangeRoles     Permission = "members.change_role"
	PermissionManageSettings  Permission = "workspace.manage_settings"
	PermissionDeleteWorkspace Permission = "workspace.delete"
	PermissionEditContent     Permission = "content.edit"
	PermissionViewContent     Permission = "content.view"
)

// Config supplies the role/permission allow-lists and the numeric role
// hierarchy. It is loaded once and treated as immutable for the resolver's
// lifetime.
type Config struct {
	// Grants maps each workspace role to the permissions it may exercise.
	Grants map[WorkspaceRole][]Permission

	// Hierarchy assigns a rank to every role, organization and workspace
	// alike, on one scale. Privileged actions require the actor's rank to be
	// strictly greater than the target's.
	Hierarchy map[string]int
}

// DefaultConfig returns the stock role setup: managers administer their
// workspace, editors change content, viewers only look.
func DefaultConfig() Config {
	return Config{
		Grants: map[WorkspaceRole][]Permission{
			RoleManager: {
				PermissionInviteMembers,
				PermissionRemoveMembers,
				PermissionChangeRoles,
				PermissionManageSettings,
				PermissionDeleteWorkspace,
				PermissionEditContent,
				PermissionViewContent,
			},
			RoleEditor: {
				PermissionEditContent,
				PermissionViewContent,
			},
			RoleViewer: {
				PermissionViewContent,
			},
		},
		Hierarchy: map[string]int{
			string(RoleOrgOwner):  100,
			string(RoleOrgAdmin):  80,
			string(RoleManager):   80,
			string(RoleEditor):    40,
			string(RoleViewer):    20,
			string(RoleOrgMember): 10,
		},
	}
}

func validateConfig(cfg Config) error {
	for _, role := range []WorkspaceRole{RoleManager, RoleEditor, RoleViewer} {
		if _, ok := cfg.Grants[role]; !ok {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("no grants for role %s", role))
		}
	}
	required := []string{
		string(RoleOrgOwner), string(RoleOrgAdmin), string(RoleOrgMember),
		string(RoleManager), string(RoleEditor), string(RoleViewer),
	}
	for _, role := range required {
		if _, ok := cfg.Hierarchy[role]; !ok {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("no hierarchy rank for role %s", role))
		}
	}
	return nil
}
