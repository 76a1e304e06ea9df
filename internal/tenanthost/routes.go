package tenanthost

import (
	"strings"
)

// RouteAction is the tagged variant of a routing decision.
type RouteAction int

const (
	// PassThrough leaves the request untouched. Covers administrative,
	// API, asset and already-rewritten paths, and any host that does not
	// resolve to a tenant.
	PassThrough RouteAction = iota
	// Rewrite sends the request to the internal tenant-scoped namespace.
	Rewrite
)

// RouteDecision tells the edge router what to do with a request. Path and
// TenantSlug are set only when Action is Rewrite.
type RouteDecision struct {
	Action     RouteAction
	Path       string
	TenantSlug string
}

// Path namespaces the edge never rewrites: the backoffice app, the API
// surface, already-rewritten tenant routes, uploaded assets and the
// operational endpoints.
var bypassPrefixes = []string{
	"/app",
	"/api",
	"/t/",
	"/uploads",
	"/static",
	"/metrics",
	"/health",
}

// Decide maps (host, path) to a routing decision. Purely syntactic: it
// never checks whether the slug names an existing tenant — that lookup
// belongs to the downstream handler, not the edge.
func Decide(host, path, baseDomain string) RouteDecision {
	for _, p := range bypassPrefixes {
		if strings.HasPrefix(path, p) {
			return RouteDecision{Action: PassThrough}
		}
	}
	// Anything with a file extension is a static asset.
	if strings.Contains(path, ".") {
		return RouteDecision{Action: PassThrough}
	}
	slug, ok := ExtractSlug(host, baseDomain)
	if !ok {
		return RouteDecision{Action: PassThrough}
	}
	return RouteDecision{
		Action:     Rewrite,
		Path:       "/t/" + slug + path,
		TenantSlug: slug,
	}
}
