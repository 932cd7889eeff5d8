package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/pgbilling/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pgbilling/http"

// GinMiddleware opens a server span per request. Org and actor attributes are
// read after the handler chain because the tenant middleware runs inside it.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(spanAttributes(c, route, status)...)

		switch {
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr.Err)
			}
			span.SetStatus(codes.Error, "request error")
		case status == http.StatusForbidden || status == http.StatusTooManyRequests:
			span.AddEvent("request denied", trace.WithAttributes(attribute.Int("http.status_code", status)))
		}
	}
}

func spanAttributes(c *gin.Context, route string, status int) []attribute.KeyValue {
	ctx := c.Request.Context()
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if orgID := obscontext.OrgIDFromContext(ctx); orgID != "" {
		attrs = append(attrs, attribute.String("org_id", orgID))
	}
	if role, _ := obscontext.ActorFromContext(ctx); role != "" {
		attrs = append(attrs, attribute.String("actor_role", role))
	}
	return attrs
}
