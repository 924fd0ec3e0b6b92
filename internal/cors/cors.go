// Package cors computes the CORS response headers for the API. Routes pick
// one of three header sets depending on whether they are public, public but
// cookie-aware, or meant for bearer clients.
package cors

import (
	"net/http"
	"strings"
)

// Mode selects a header set.
type Mode int

const (
	// Public allows simple cross-origin reads without credentials.
	Public Mode = iota
	// PublicWithCredentials is Public plus Allow-Credentials so the session
	// cookie travels with the request.
	PublicWithCredentials
	// Auth is the bearer header set: PATCH, the Authorization header and
	// credentials.
	Auth
)

// DefaultOrigins is used when no allowlist is configured.
var DefaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:5174",
}

// Policy holds the origin allowlist. The first origin doubles as the
// fallback echoed for unknown origins.
type Policy struct {
	origins []string
}

// NewPolicy builds a Policy; blank entries are skipped.
func NewPolicy(origins []string) *Policy {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultOrigins...)
	}
	return &Policy{origins: out}
}

// Origins returns a copy of the allowlist.
func (p *Policy) Origins() []string {
	return append([]string(nil), p.origins...)
}

// IsAllowed reports whether origin is on the allowlist.
func (p *Policy) IsAllowed(origin string) bool {
	for _, o := range p.origins {
		if o == origin {
			return true
		}
	}
	return false
}

// AllowOrigin returns origin when allowed, otherwise the first allowed
// origin.
func (p *Policy) AllowOrigin(origin string) string {
	if origin != "" && p.IsAllowed(origin) {
		return origin
	}
	return p.origins[0]
}

// Headers returns the header set for mode and the request origin.
func (p *Policy) Headers(mode Mode, origin string) map[string]string {
	h := map[string]string{
		"Access-Control-Allow-Origin":  p.AllowOrigin(origin),
		"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	switch mode {
	case PublicWithCredentials:
		h["Access-Control-Allow-Credentials"] = "true"
	case Auth:
		h["Access-Control-Allow-Methods"] = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
		h["Access-Control-Allow-Headers"] = "Content-Type, Authorization"
		h["Access-Control-Allow-Credentials"] = "true"
	}
	return h
}

// Apply writes the header set into dst together with Vary: Origin.
func (p *Policy) Apply(dst http.Header, mode Mode, origin string) {
	for k, v := range p.Headers(mode, origin) {
		dst.Set(k, v)
	}
	for _, v := range dst.Values("Vary") {
		if strings.EqualFold(v, "Origin") {
			return
		}
	}
	dst.Add("Vary", "Origin")
}
