package ip

import (
	"net"
	"strings"
)

// ParseClientIP normalizes the client address reported by the proxy tier.
// The value may carry a port suffix ("1.2.3.4:5678") and IPv6 addresses
// may be bracketed ("[::1]:443" or "[::1]"). Returns nil when no usable
// address is present.
func ParseClientIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	} else if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		// Bracketed IPv6 without a port.
		raw = raw[1 : len(raw)-1]
	}

	return net.ParseIP(raw)
}

// ParseIPNet parses either a bare address or a CIDR into a *net.IPNet.
// Bare addresses become single-host networks. Returns nil for anything
// malformed, which rule predicates treat as non-matching.
func ParseIPNet(s string) *net.IPNet {
	if !strings.ContainsRune(s, '/') {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil
		}

		var mask net.IPMask
		switch {
		case ip.To4() != nil:
			mask = net.CIDRMask(32, 32)
		case ip.To16() != nil:
			mask = net.CIDRMask(128, 128)
		default:
			return nil
		}

		return &net.IPNet{
			IP:   ip,
			Mask: mask,
		}
	}

	switch ip, ipNet, err := net.ParseCIDR(s); {
	case err != nil:
		return nil
	case !ipNet.IP.Equal(ip):
		return nil
	default:
		return ipNet
	}
}
