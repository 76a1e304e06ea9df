package middleware

import (
	"github.com/labstack/echo/v4"

	"saasresto/internal/tenanthost"
	"saasresto/prometheus"
)

// EdgeRouter resolves the tenant slug from the Host header and rewrites
// tenant-facing requests to the internal /t/<slug> namespace before the
// router sees them. Register with e.Pre so it runs ahead of route
// matching.
//
// This layer is unauthenticated and tenant-routing only. It must stay
// cheap and safe to run on every request: no database access, no session
// checks. Whether the slug names an existing tenant is the downstream
// handler's problem.
func EdgeRouter(baseDomain string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// The tenant header is trusted ground truth downstream, so a
			// client-supplied copy must never survive the edge.
			req.Header.Del(tenanthost.TenantSlugHeader)

			decision := tenanthost.Decide(req.Host, req.URL.Path, baseDomain)
			if decision.Action == tenanthost.Rewrite {
				req.Header.Set(tenanthost.TenantSlugHeader, decision.TenantSlug)
				req.URL.Path = decision.Path
				prometheus.TenantRewriteCounter.Inc()
			}
			return next(c)
		}
	}
}
