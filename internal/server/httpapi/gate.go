package httpapi

import (
	"net/http"
	"path"
	"strings"
)

// AccessDecision is the outcome of evaluating a request against the gate or
// an ownership check.
type AccessDecision int

const (
	Allow AccessDecision = iota
	Deny
	BlockedByGate
)

func (d AccessDecision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case BlockedByGate:
		return "blocked_by_gate"
	default:
		return "unknown"
	}
}

// AccessGate refuses direct requests into the raw media namespace. Allow
// prefixes are checked first, so the protected endpoint stays reachable even
// though it lives under a blocked prefix.
type AccessGate struct {
	allow []string
	block []string
}

func NewAccessGate(allow, block []string) *AccessGate {
	return &AccessGate{
		allow: append([]string(nil), allow...),
		block: append([]string(nil), block...),
	}
}

// Decide classifies a URL path. The path is cleaned first, so dot segments
// cannot walk from an allowed prefix into a blocked one.
func (g *AccessGate) Decide(urlPath string) AccessDecision {
	p := cleanURLPath(urlPath)

	for _, prefix := range g.allow {
		if strings.HasPrefix(p, prefix) {
			return Allow
		}
	}
	for _, prefix := range g.block {
		if strings.HasPrefix(p, prefix) || p+"/" == prefix {
			return BlockedByGate
		}
	}
	return Allow
}

// Intercept is the gate as a request interceptor.
func (g *AccessGate) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Decide(r.URL.Path) == BlockedByGate {
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanURLPath is path.Clean that keeps a trailing slash.
func cleanURLPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
