package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/printworks_backend/appctx"
)

var (
	ContextKeyToken          = appctx.ContextKeyToken
	ContextKeyUserId         = appctx.ContextKeyUserId
	ContextKeyUserName       = appctx.ContextKeyUserName
	ContextKeyUserRole       = appctx.ContextKeyUserRole
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId
	ContextKeyIncludeDeleted = appctx.ContextKeyIncludeDeleted
)

// Actor is the acting user attributed on every mutation.
type Actor struct {
	ID   int
	Name string
	Role string
}

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// CorrelationIdFromContextOrNew never returns "".
func CorrelationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// WithActor stores the acting user; the audit guard and every operation read it back.
func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = appctx.Set(ctx, ContextKeyUserId, actor.ID)
	ctx = appctx.Set(ctx, ContextKeyUserName, actor.Name)
	return appctx.Set(ctx, ContextKeyUserRole, actor.Role)
}

// ActorFromContext fails with ValidationError actor_required when no user is attached.
func ActorFromContext(ctx context.Context) (Actor, error) {
	id, ok := GetUserIdFromContext(ctx)
	if !ok || id <= 0 {
		return Actor{}, NewValidationError("actor_required", "an acting user is required")
	}
	name, _ := GetUserNameFromContext(ctx)
	role, _ := GetUserRoleFromContext(ctx)
	return Actor{ID: id, Name: name, Role: role}, nil
}

// WithDeleted lets audit/history reads see soft-deleted rows.
func WithDeleted(ctx context.Context) context.Context {
	return appctx.Set(ctx, ContextKeyIncludeDeleted, true)
}
