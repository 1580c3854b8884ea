// Package header provides the origin gate and CORS headers for the streamer
// proxy.
//
// The proxy only answers browsers embedded on allow-listed sites:
//
//	Widget (origin) --> Gate --> Proxy --> Upstream LLM Provider
//
// An origin passes when its host, with the scheme, port and a leading "www."
// removed, equals an allow-listed domain or is a subdomain of one.
package header

import (
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

// ProjectNameHeader carries the project selector on the legacy update route.
const ProjectNameHeader = "X-Project-Name"

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization, " + ProjectNameHeader
)

// Gate holds the origin allow-list. The list can be swapped at runtime with
// SetDomains while requests are being served.
type Gate struct {
	domains atomic.Pointer[[]string]
}

// NewGate creates a Gate for the given domains. An empty list disables the
// gate and every origin is accepted.
func NewGate(domains []string) *Gate {
	g := &Gate{}
	g.SetDomains(domains)
	return g
}

// SetDomains replaces the allow-list.
func (g *Gate) SetDomains(domains []string) {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if h := Host(d); h != "" {
			normalized = append(normalized, h)
		}
	}
	g.domains.Store(&normalized)
}

// Domains returns the normalized allow-list.
func (g *Gate) Domains() []string {
	return append([]string(nil), (*g.domains.Load())...)
}

// Disabled reports whether the allow-list is empty.
func (g *Gate) Disabled() bool {
	return len(*g.domains.Load()) == 0
}

// Allowed reports whether origin may use the proxy. A missing origin is only
// accepted while the gate is disabled.
func (g *Gate) Allowed(origin string) bool {
	domains := *g.domains.Load()
	if len(domains) == 0 {
		return true
	}

	host := Host(origin)
	if host == "" {
		return false
	}

	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Host reduces an origin or bare domain to a lower-case host name without
// port or leading "www.".
func Host(origin string) string {
	s := strings.TrimSpace(strings.ToLower(origin))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(u.Hostname(), "www.")
}

// SetCORS writes the CORS response headers, echoing origin.
func SetCORS(c *fiber.Ctx, origin string) {
	if origin != "" {
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	}
	c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
	c.Set(fiber.HeaderAccessControlAllowCredentials, "false")
}

// SetStreamHeaders marks the response as an unbuffered event stream.
func SetStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}
