package pkg

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies are the reverse proxies whose X-Real-Ip / X-Forwarded-For headers are believed
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts plain IPs and CIDR ranges, e.g. "127.0.0.1" or "10.0.0.0/8"
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy: %q", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			entry = fmt.Sprintf("%s/%d", ip, bits)
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy: %q", entry)
		}
		proxies = append(proxies, ipNet)
	}
	return proxies, nil
}

func (tp TrustedProxies) Contains(ip net.IP) bool {
	for _, ipNet := range tp {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ReadUserIP returns the client IP. Forwarding headers are only used when the direct peer is
// a trusted proxy, otherwise anyone could pick their own IP by setting them.
func ReadUserIP(r *http.Request, trusted TrustedProxies) (string, error) {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	remoteIP := net.ParseIP(remote)
	if remoteIP == nil {
		return "", fmt.Errorf("ip addr %s is invalid", remote)
	}

	if !trusted.Contains(remoteIP) {
		return remoteIP.String(), nil
	}

	if realIP := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); realIP != nil {
		return realIP.String(), nil
	}

	// walk from the right, the first hop not added by our own proxies is the client
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hopIP := net.ParseIP(strings.TrimSpace(hops[i]))
			if hopIP == nil {
				break
			}
			if !trusted.Contains(hopIP) {
				return hopIP.String(), nil
			}
		}
	}

	return remoteIP.String(), nil
}
