// Package context carries request-scoped correlation values for logs and traces.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}

type actor struct {
	role string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey{}, strings.TrimSpace(orgID))
}

func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(orgIDKey{}).(string)
	return value
}

// WithActor records the caller's role and identifier.
func WithActor(ctx context.Context, role, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{role: strings.TrimSpace(role), id: strings.TrimSpace(id)})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.role, value.id
}
