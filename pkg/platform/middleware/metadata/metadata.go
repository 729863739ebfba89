// Package metadata records the caller's IP address and User-Agent on the request context.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"taskboard/pkg/requestcontext"
)

// Resolver determines the client IP of a request. Forwarding headers are
// only honored when the connection comes from a trusted proxy.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver parses trustedProxies, each a bare IP or a CIDR. An empty list
// means the connection address is always the client.
func NewResolver(trustedProxies []string) (*Resolver, error) {
	r := &Resolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			r.trusted = append(r.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return r, nil
}

// ClientMetadata extracts client IP address and User-Agent using the
// connection address only.
func ClientMetadata(next http.Handler) http.Handler {
	return (&Resolver{}).Middleware(next)
}

// Middleware adds the resolved client IP and User-Agent to the context.
// Apply it early in the chain.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the connection address of r, ignoring
// forwarding headers.
func ClientIPFromRequest(r *http.Request) string {
	return (&Resolver{}).ClientIP(r)
}

// ClientIP returns the originating client IP. When the peer is a trusted
// proxy, X-Forwarded-For is walked right to left and the first untrusted hop
// wins. A malformed hop yields the peer address. X-Real-IP is used when no
// X-Forwarded-For is present.
func (res *Resolver) ClientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if !res.isTrusted(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if !validIP(hop) {
				return remote
			}
			if !res.isTrusted(hop) {
				return hop
			}
		}
		return strings.TrimSpace(hops[0])
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(xri) {
		return xri
	}
	return remote
}

func (res *Resolver) isTrusted(ip string) bool {
	if len(res.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func validIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}
