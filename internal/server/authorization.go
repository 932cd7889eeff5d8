package server

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pgbilling/internal/authorization"
	obscontext "github.com/smallbiznis/pgbilling/internal/observability/context"
	"github.com/smallbiznis/pgbilling/internal/orgcontext"
)

type actorContextKey struct{}

// ActorContext reads the caller identity set by the upstream gateway.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := authorization.Actor{
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))),
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
		}
		if actor.Role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ctx := context.WithValue(c.Request.Context(), actorContextKey{}, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(ctx, actor.Role, actor.ID))
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID := orgIDFromContext(c.Request.Context())
		if orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, orgID.String(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFromContext(ctx context.Context) (authorization.Actor, bool) {
	if ctx == nil {
		return authorization.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(authorization.Actor)
	return actor, ok && actor.Role != ""
}

func orgIDFromContext(ctx context.Context) snowflake.ID {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0
	}
	return orgID
}
