package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// Documentation-only ranges are not covered by the netip classification
// helpers and have to be listed explicitly.
var documentationPrefixes = []netip.Prefix{
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("2001:db8::/32"),
}

var broadcastV4 = netip.MustParseAddr("255.255.255.255")

// Resolve derives the originating client address of a request.
//
// A publicly routable transport peer is trusted as-is: a public peer cannot
// be a local reverse proxy, so its forwarding headers are ignored. Only when
// the direct peer is non-public (assumed to be a proxy on the same host or
// network) are X-Real-IP and then the first X-Forwarded-For element
// consulted. If neither header parses, the peer address is returned even
// though it is non-public.
func Resolve(remoteAddr string, header http.Header) netip.Addr {
	peer := parsePeer(remoteAddr)

	if peer.IsValid() && IsPublic(peer) {
		return peer
	}

	if raw := strings.TrimSpace(header.Get("X-Real-IP")); raw != "" {
		if addr, err := netip.ParseAddr(raw); err == nil {
			log.Debug().Stringer("ip", addr).Msg("client address from X-Real-IP")
			return addr.Unmap()
		}
	}

	if raw := strings.TrimSpace(header.Get("X-Forwarded-For")); raw != "" {
		first, _, _ := strings.Cut(raw, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			log.Debug().Stringer("ip", addr).Msg("client address from X-Forwarded-For")
			return addr.Unmap()
		}
	}

	if peer.IsValid() {
		return peer
	}
	return netip.IPv4Unspecified()
}

// IsPublic reports whether addr is a publicly routable unicast address.
// Private, loopback, link-local, multicast, documentation, unspecified and
// broadcast addresses are all non-public, as are IPv4-mapped IPv6 addresses.
func IsPublic(addr netip.Addr) bool {
	if !addr.IsValid() || addr.Is4In6() {
		return false
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return false
	}
	if addr == broadcastV4 {
		return false
	}
	for _, p := range documentationPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// BanKey normalizes addr into the identity failure counts aggregate under.
// IPv4 addresses are used verbatim; IPv6 addresses collapse to their /48
// network so rotating within one allocation does not evade the limiter.
func BanKey(addr netip.Addr) netip.Addr {
	addr = addr.Unmap()
	if addr.Is4() {
		return addr
	}
	prefix, err := addr.Prefix(48)
	if err != nil {
		return addr
	}
	return prefix.Addr()
}

func parsePeer(remoteAddr string) netip.Addr {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
