// Package authz resolves effective roles and permissions across the
// organization/workspace hierarchy.
//
// Organization admins and owners have implicit access to every workspace in
// their organization; a direct workspace membership row always wins when
// resolving the effective role. Permission allow-lists and role ranks come
// from an immutable Config loaded at startup.
//
// Privileged member actions (remove, role change, invite-at-role) follow the
// strictly-lower rule: the target's role and any requested role must rank
// strictly below the actor's own. Acting on oneself and touching the
// organization owner are rejected ahead of any rank comparison.
package authz
