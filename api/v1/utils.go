package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// nonPublic covers loopback, RFC 1918, unique local and link-local space.
var nonPublic = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// singleValueHeaders are consulted after X-Forwarded-For, in order.
var singleValueHeaders = []string{"X-Real-IP", "CF-Connecting-IP", "True-Client-IP"}

// clientIP returns the visitor's public address, looking through the usual
// proxy headers first. Returns "" when only private addresses are known.
func clientIP(c *fiber.Ctx) string {
	candidates := [][]string{strings.Split(c.Get("X-Forwarded-For"), ",")}
	for _, header := range singleValueHeaders {
		candidates = append(candidates, []string{c.Get(header)})
	}
	candidates = append(candidates, parseForwardedHeader(c.Get("Forwarded")))
	if addr := c.Context().RemoteAddr(); addr != nil {
		candidates = append(candidates, []string{addr.String()})
	}

	for _, values := range candidates {
		if ip := selectPreferredIP(values); ip != "" {
			return ip
		}
	}
	return ""
}

func isPrivateIP(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range nonPublic {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// selectPreferredIP returns the first public IPv4 in values, else the first public IPv6.
func selectPreferredIP(values []string) string {
	var v6 string
	for _, raw := range values {
		addr := normalizeIP(raw)
		if !addr.IsValid() || isPrivateIP(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if v6 == "" {
			v6 = addr.String()
		}
	}
	return v6
}

// normalizeIP parses a header value that may carry quotes, a port, brackets
// or an IPv6 zone. The zero Addr is returned for anything unparseable.
func normalizeIP(raw string) netip.Addr {
	value := strings.Trim(strings.TrimSpace(raw), `"`)
	if value == "" {
		return netip.Addr{}
	}
	if zone := strings.IndexByte(value, '%'); zone >= 0 {
		value = value[:zone]
	}

	if ap, err := netip.ParseAddrPort(value); err == nil {
		return ap.Addr().Unmap()
	}
	if addr, err := netip.ParseAddr(strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")); err == nil {
		return addr.Unmap()
	}
	if host, _, err := net.SplitHostPort(value); err == nil && host != value {
		return normalizeIP(host)
	}
	return netip.Addr{}
}

// parseForwardedHeader extracts the for= values of an RFC 7239 header.
func parseForwardedHeader(header string) []string {
	var out []string
	for _, element := range strings.FieldsFunc(header, func(r rune) bool { return r == ',' || r == ';' }) {
		pair := strings.TrimSpace(element)
		if len(pair) > 4 && strings.EqualFold(pair[:4], "for=") {
			out = append(out, pair[4:])
		}
	}
	return out
}
