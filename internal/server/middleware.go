package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/pgbilling/internal/observability/context"
	"github.com/smallbiznis/pgbilling/internal/orgcontext"
)

const (
	HeaderOrg       = "X-Org-ID"
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// OrgContext resolves the tenant from the request header and injects it.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID.Int64())
		c.Request = c.Request.WithContext(obscontext.WithOrgID(ctx, orgID.String()))
		c.Next()
	}
}

// QuoteRateLimit throttles pricing quotes per organization.
func (s *Server) QuoteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.quoteLimiter.Enabled() {
			c.Next()
			return
		}

		orgID := orgIDFromContext(c.Request.Context())
		res, err := s.quoteLimiter.Allow(c.Request.Context(), orgID.String())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if res.Limit > 0 {
			c.Header(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			seconds := int(res.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header(HeaderRetryAfter, strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
