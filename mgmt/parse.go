package mgmt

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/yllada/ovpn-mgmt/common"
)

// Errors returned by the parsers, re-exported from common for convenience.
var (
	ErrFormat                = common.ErrFormat
	ErrMalformedNotification = common.ErrMalformedNotification
)

// Timestamp layouts used by status dumps. OpenVPN prints ctime-style dates
// by default and ISO dates when built with some platform options.
var timeLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"2006-01-02 15:04:05",
}

// ParseString trims surrounding whitespace from raw.
// It reports ok=false when nothing is left.
func ParseString(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	return s, true
}

// ParseInt parses raw as a base-10 signed integer.
// Absent input yields ok=false and a nil error.
func ParseInt(raw string) (int64, bool, error) {
	s, ok := ParseString(raw)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: integer %q", ErrFormat, s)
	}
	return n, true, nil
}

// ParseUint parses raw as a base-10 unsigned counter such as a byte count.
func ParseUint(raw string) (uint64, bool, error) {
	s, ok := ParseString(raw)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: counter %q", ErrFormat, s)
	}
	return n, true, nil
}

// ParseIPAddress parses raw as an IPv4 or IPv6 literal.
// Absent input yields the zero Addr, for which IsValid reports false.
// Use Is4 and Is6 on the result to tell the families apart.
func ParseIPAddress(raw string) (netip.Addr, error) {
	s, ok := ParseString(raw)
	if !ok {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: ip address %q", ErrFormat, s)
	}
	return addr, nil
}

// ParseAddrPort parses a real-address column such as "198.51.100.4:49502"
// or "[2001:db8::4]:1194". A leading transport label ("udp4:", "tcp6-server:")
// is dropped.
func ParseAddrPort(raw string) (netip.AddrPort, error) {
	s, ok := ParseString(raw)
	if !ok {
		return netip.AddrPort{}, nil
	}
	ap, err := netip.ParseAddrPort(stripTransport(s))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: address %q", ErrFormat, s)
	}
	return ap, nil
}

func stripTransport(s string) string {
	label, rest, found := strings.Cut(s, ":")
	if !found {
		return s
	}
	label = strings.TrimSuffix(strings.TrimSuffix(label, "-server"), "-client")
	switch label {
	case "udp", "udp4", "udp6", "tcp", "tcp4", "tcp6":
		return rest
	}
	return s
}

// ParseTime parses a status-dump timestamp in the local zone.
func ParseTime(raw string) (time.Time, bool, error) {
	s, ok := ParseString(raw)
	if !ok {
		return time.Time{}, false, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: timestamp %q", ErrFormat, s)
}

// ParseUnixTime parses raw as seconds since the epoch, returned in UTC.
func ParseUnixTime(raw string) (time.Time, bool, error) {
	n, ok, err := ParseInt(raw)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(n, 0).UTC(), true, nil
}
