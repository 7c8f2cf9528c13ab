package authz

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrWorkspaceNotFound is returned when a workspace has not been registered
// with the membership source.
var ErrWorkspaceNotFound = errors.New("authz.workspace_not_found")

type membershipKey struct {
	userID  uuid.UUID
	scopeID uuid.UUID
}

// InMemMembershipSource is a thread-safe in-memory MembershipSource,
// intended for tests and single-node setups.
type InMemMembershipSource struct {
	mu       sync.RWMutex
	orgRoles map[membershipKey]OrgRole
	wsRoles  map[membershipKey]WorkspaceRole
	wsOrg    map[uuid.UUID]uuid.UUID
}

// NewInMemMembershipSource creates an empty in-memory membership source.
func NewInMemMembershipSource() *InMemMembershipSource {
	return &InMemMembershipSource{
		orgRoles: make(map[membershipKey]OrgRole),
		wsRoles:  make(map[membershipKey]WorkspaceRole),
		wsOrg:    make(map[uuid.UUID]uuid.UUID),
	}
}

// AddWorkspace registers a workspace under its parent organization.
func (s *InMemMembershipSource) AddWorkspace(workspaceID, orgID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsOrg[workspaceID] = orgID
}

// SetOrganizationRole records a user's organization membership.
func (s *InMemMembershipSource) SetOrganizationRole(userID, orgID uuid.UUID, role OrgRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgRoles[membershipKey{userID, orgID}] = role
}

// SetWorkspaceRole records a user's direct workspace membership.
func (s *InMemMembershipSource) SetWorkspaceRole(userID, workspaceID uuid.UUID, role WorkspaceRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsRoles[membershipKey{userID, workspaceID}] = role
}

// RemoveWorkspaceRole deletes a user's direct workspace membership.
func (s *InMemMembershipSource) RemoveWorkspaceRole(userID, workspaceID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wsRoles, membershipKey{userID, workspaceID})
}

func (s *InMemMembershipSource) OrganizationRole(ctx context.Context, userID, orgID uuid.UUID) (OrgRole, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.orgRoles[membershipKey{userID, orgID}]
	return role, ok, nil
}

func (s *InMemMembershipSource) WorkspaceRole(ctx context.Context, userID, workspaceID uuid.UUID) (WorkspaceRole, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.wsRoles[membershipKey{userID, workspaceID}]
	return role, ok, nil
}

func (s *InMemMembershipSource) WorkspaceOrganization(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.wsOrg[workspaceID]
	if !ok {
		return uuid.Nil, ErrWorkspaceNotFound
	}
	return orgID, nil
}

func (s *InMemMembershipSource) WorkspaceRolesInOrganization(ctx context.Context, userID, orgID uuid.UUID) ([]WorkspaceRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roles []WorkspaceRole
	for key, role := range s.wsRoles {
		if key.userID != userID {
			continue
		}
		if s.wsOrg[key.scopeID] == orgID {
			roles = append(roles, role)
		}
	}
	return roles, nil
}
