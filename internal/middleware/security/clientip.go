package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver determines the originating client IP for rate limiting
// and request logging. Forwarded headers are only honored when the direct
// peer is a trusted proxy; otherwise they are attacker-controlled.
type ClientIPResolver struct {
	trustedProxies []*net.IPNet
}

// NewClientIPResolver trusts loopback and RFC 1918 ranges by default,
// which covers the usual reverse-proxy deployments.
func NewClientIPResolver() *ClientIPResolver {
	return &ClientIPResolver{
		trustedProxies: []*net.IPNet{
			mustCIDR("127.0.0.0/8"),
			mustCIDR("10.0.0.0/8"),
			mustCIDR("172.16.0.0/12"),
			mustCIDR("192.168.0.0/16"),
		},
	}
}

// TrustProxy adds a proxy network whose forwarded headers are honored.
func (c *ClientIPResolver) TrustProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	c.trustedProxies = append(c.trustedProxies, network)
	return nil
}

// Resolve returns the client IP for the request. The peer address wins
// unless it belongs to a trusted proxy carrying a parseable
// X-Forwarded-For or X-Real-IP header.
func (c *ClientIPResolver) Resolve(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}

	peerIP := net.ParseIP(peer)
	if peerIP == nil || !c.isTrusted(peerIP) {
		return peer
	}

	// X-Forwarded-For lists the original client first.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return peer
}

func (c *ClientIPResolver) isTrusted(ip net.IP) bool {
	for _, network := range c.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("bad built-in CIDR %s: %v", cidr, err))
	}
	return network
}
