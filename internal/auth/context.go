// internal/auth/context.go
package auth

import (
	"context"

	"github.com/google/uuid"
)

type (
	ctxKey      struct{}
	operatorKey struct{}
)

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFrom returns the authenticated user, if any.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithIdentity stores the user id and role of a verified token in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = WithUserID(ctx, id.UserID)
	return context.WithValue(ctx, operatorKey{}, id.Operator)
}

// IsOperator reports whether the authenticated caller holds the operator role.
func IsOperator(ctx context.Context) bool {
	op, _ := ctx.Value(operatorKey{}).(bool)
	return op
}
