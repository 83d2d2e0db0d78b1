// internal/app/system/ratelimit/clientip.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
)

var (
	proxyMu sync.RWMutex
	// nil means loopback and private addresses.
	trustedProxies []netip.Prefix
)

// TrustProxies sets the proxies whose forwarding headers ClientIP honors.
// Entries are CIDRs or bare IPs. An empty list restores the default of
// loopback and private addresses.
func TrustProxies(entries []string) error {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			a, err := netip.ParseAddr(e)
			if err != nil {
				return fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(e)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	proxyMu.Lock()
	trustedProxies = prefixes
	proxyMu.Unlock()
	return nil
}

func isTrustedProxy(a netip.Addr) bool {
	a = a.Unmap()
	proxyMu.RLock()
	defer proxyMu.RUnlock()
	if trustedProxies == nil {
		return a.IsLoopback() || a.IsPrivate()
	}
	for _, p := range trustedProxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client that reached the nearest
// trusted proxy. Forwarding headers are ignored unless the direct peer is a
// trusted proxy; X-Forwarded-For is then read right to left, skipping
// trusted hops, so a client-supplied leftmost value never becomes the key.
func ClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !isTrustedProxy(addr) {
		return peer
	}

	if hops := forwardedHops(r); len(hops) > 0 {
		closest := addr
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(hops[i])
			if err != nil {
				break
			}
			if !isTrustedProxy(hop) {
				return hop.Unmap().String()
			}
			closest = hop
		}
		return closest.Unmap().String()
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return addr.Unmap().String()
}

// forwardedHops flattens every X-Forwarded-For header into one hop list.
func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hops = append(hops, h)
			}
		}
	}
	return hops
}
