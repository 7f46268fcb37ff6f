// Package httpmw holds gin middleware shared by the control-plane and
// browser-node HTTP servers.
package httpmw

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/syncsocial/syncsocial/internal/common/tracing"
)

// OtelTracing wraps each request in an OTel span named "METHOD /route".
// Without an OTEL_EXPORTER_OTLP_ENDPOINT the tracer is a noop and the
// middleware costs next to nothing.
func OtelTracing(serverName string) gin.HandlerFunc {
	tracer := tracing.Tracer(serverName)

	return func(c *gin.Context) {
		route := routeOf(c)

		ctx, span := tracer.Start(c.Request.Context(),
			c.Request.Method+" "+route)
		defer span.End()

		span.SetAttributes(
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(route),
		)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			semconv.HTTPResponseStatusCodeKey.Int(status),
			attribute.Int("http.response.size", c.Writer.Size()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}

// routeOf prefers the registered route pattern (stable cardinality) over the
// raw URL path, which only appears for unmatched requests.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
