// Package tenanthost maps inbound Host headers to tenant slugs and decides
// how the edge should route a request. It runs on every request before any
// application logic, so everything here is pure: no database access, no
// logging, no I/O. Keep it that way.
package tenanthost

import (
	"strings"
)

// TenantSlugHeader carries the edge-resolved tenant slug to downstream
// handlers. It is authoritative only when set by the edge router itself;
// any client-supplied copy must be stripped before the router sets its own.
const TenantSlugHeader = "X-Tenant-Slug"

// Reserved subdomains that must never be treated as tenants. Infrastructure
// labels only — never add a real tenant slug here. Registration checks new
// slugs against this set so the two can never collide.
var reservedSubdomains = map[string]bool{
	"www":     true,
	"app":     true,
	"api":     true,
	"admin":   true,
	"static":  true,
	"assets":  true,
	"cdn":     true,
	"support": true,
	"help":    true,
}

// IsReservedSubdomain reports whether s is an infrastructure label that can
// never be a tenant slug.
func IsReservedSubdomain(s string) bool {
	return reservedSubdomains[strings.ToLower(s)]
}

// NormalizeHost strips a trailing :port and lowercases a raw Host header.
// Returns "" for an empty header.
func NormalizeHost(raw string) string {
	if raw == "" {
		return ""
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(raw)
}

// ValidSlug reports whether s matches the tenant slug grammar: one or more
// characters from [a-z0-9], optionally with internal hyphens, never
// starting or ending with a hyphen. Checked byte-wise rather than with a
// regexp because this sits on the per-request hot path.
func ValidSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return false
	}
	return true
}

// Slug length bounds enforced at registration. The resolver itself accepts
// any grammar-valid label so that routing and registration cannot disagree
// about an existing tenant.
const (
	SlugMinLen = 3
	SlugMaxLen = 30
)

// ValidRegistrationSlug reports whether s may be claimed as a new tenant
// slug: grammar-valid, within length bounds, and not a reserved label.
func ValidRegistrationSlug(s string) bool {
	return len(s) >= SlugMinLen && len(s) <= SlugMaxLen && ValidSlug(s) && !IsReservedSubdomain(s)
}

// ExtractSlug derives a candidate tenant slug from a raw Host header.
// Returns ok=false when no tenant applies: host does not end with the base
// domain, bare base domain, reserved label, or a prefix that fails the slug
// grammar. Multi-label prefixes ("a.b." + base) never resolve — tenant
// slugs are a single label, and the grammar rejects embedded dots.
func ExtractSlug(host, baseDomain string) (string, bool) {
	h := NormalizeHost(host)
	base := strings.ToLower(baseDomain)
	if h == "" || base == "" || !strings.HasSuffix(h, base) {
		return "", false
	}
	prefix := strings.TrimSuffix(h[:len(h)-len(base)], ".")
	if prefix == "" || reservedSubdomains[prefix] || !ValidSlug(prefix) {
		return "", false
	}
	return prefix, true
}
