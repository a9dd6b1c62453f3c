package vpn

import (
	"fmt"
	"net/netip"
	"strings"
)

// normalizeNetworkRoute turns a routing-table virtual address into a prefix.
// Converts "192.168.1.1/24" to "192.168.1.0/24" (correct network address)
// Converts "10.0.0.5" to "10.0.0.5/32" (individual host)
// Cached routes carry a trailing "C". It is only dropped when the column
// does not parse as is, since "C" is also a valid last hex digit of an IPv6
// address. Non-IP entries such as MAC addresses in tap mode report ok=false.
func normalizeNetworkRoute(route string) (netip.Prefix, bool) {
	route = strings.TrimSpace(route)
	if route == "" {
		return netip.Prefix{}, false
	}
	if prefix, ok := parseRoute(route); ok {
		return prefix, true
	}
	if trimmed, cached := strings.CutSuffix(route, "C"); cached {
		return parseRoute(trimmed)
	}
	return netip.Prefix{}, false
}

func parseRoute(route string) (netip.Prefix, bool) {
	if strings.Contains(route, "/") {
		prefix, err := netip.ParsePrefix(route)
		if err != nil {
			return netip.Prefix{}, false
		}
		return prefix.Masked(), true
	}

	addr, err := netip.ParseAddr(route)
	if err != nil {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr, addr.BitLen()), true
}

// netmaskString renders an IPv4 prefix length in dotted-quad form.
// Examples:
//   - 192.168.1.0/24 -> "255.255.255.0"
//   - 10.0.0.1/32 -> "255.255.255.255"
//
// IPv6 prefixes have no dotted form and are rendered as "/bits".
func netmaskString(prefix netip.Prefix) string {
	if !prefix.IsValid() {
		return ""
	}
	if !prefix.Addr().Is4() {
		return fmt.Sprintf("/%d", prefix.Bits())
	}
	var mask [4]byte
	for i := 0; i < prefix.Bits(); i++ {
		mask[i/8] |= 0x80 >> (i % 8)
	}
	return fmt.Sprintf("%d.%d.%d.%d", mask[0], mask[1], mask[2], mask[3])
}
