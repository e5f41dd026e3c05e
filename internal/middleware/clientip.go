package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPExtractor finds the client address of a request, looking through
// reverse-proxy headers when the peer is allowed to set them.
//
// Header precedence is X-Forwarded-For (first entry), X-Real-Ip, then the
// for= parameter of Forwarded (RFC 7239), falling back to the peer address.
//
// With no TrustedProxies every peer is trusted. That is the right setting
// behind a reverse proxy that overwrites these headers, and wrong when the
// service is reachable directly: clients could then pick their own rate
// limit key.
type IPExtractor struct {
	TrustedProxies []netip.Prefix
}

// ClientIP returns the client address, or false when none can be found.
func (e IPExtractor) ClientIP(r *http.Request) (netip.Addr, bool) {
	peer, peerOK := parseHostAddr(r.RemoteAddr)

	if e.trusts(peer, peerOK) {
		if ip, ok := fromXForwardedFor(r.Header.Get("X-Forwarded-For")); ok {
			return ip, true
		}
		if ip, ok := parseHostAddr(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); ok {
			return ip, true
		}
		if ip, ok := fromForwarded(r.Header.Get("Forwarded")); ok {
			return ip, true
		}
	}

	return peer, peerOK
}

func (e IPExtractor) trusts(peer netip.Addr, ok bool) bool {
	if len(e.TrustedProxies) == 0 {
		return true
	}
	if !ok {
		return false
	}
	for _, p := range e.TrustedProxies {
		if p.Contains(peer) {
			return true
		}
	}
	return false
}

func fromXForwardedFor(v string) (netip.Addr, bool) {
	if v == "" {
		return netip.Addr{}, false
	}
	first, _, _ := strings.Cut(v, ",")
	return parseHostAddr(strings.TrimSpace(first))
}

// fromForwarded reads the first for= parameter, e.g.
//
//	Forwarded: for="[2001:db8::1]:4711";proto=https, for=198.51.100.17
func fromForwarded(v string) (netip.Addr, bool) {
	for _, element := range strings.Split(v, ",") {
		for _, pair := range strings.Split(element, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(key, "for") {
				continue
			}
			value = strings.Trim(value, `"`)
			if ip, ok := parseHostAddr(value); ok {
				return ip, true
			}
		}
	}
	return netip.Addr{}, false
}

// parseHostAddr accepts "ip", "ip:port", "[ipv6]" and "[ipv6]:port".
func parseHostAddr(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}
