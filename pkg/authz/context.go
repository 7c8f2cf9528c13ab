package authz

import (
	"context"

	"github.com/google/uuid"
)

// actorCtxKey is the context key for storing the acting user's ID.
type actorCtxKey struct{}

// SetActorToContext stores the acting user's ID in the context.
func SetActorToContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, userID)
}

// GetActorFromContext retrieves the acting user's ID from the context.
func GetActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(actorCtxKey{}).(uuid.UUID)
	return userID, ok
}

// CanFromContext checks the permission for the actor stored in the context.
func (r *Resolver) CanFromContext(ctx context.Context, workspaceID uuid.UUID, permission Permission) error {
	userID, ok := GetActorFromContext(ctx)
	if !ok {
		return ErrActorNotInContext
	}
	return r.Can(ctx, userID, workspaceID, permission)
}
