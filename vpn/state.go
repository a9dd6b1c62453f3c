// Package vpn provides typed records parsed from OpenVPN management output.
// This file contains the State record returned by the "state" command and
// carried by >STATE notifications.
package vpn

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// ErrParse is returned when a reply does not contain the expected record.
var ErrParse = common.ErrParse

// Daemon state names reported in the second column of a state line.
const (
	StateConnecting   = "CONNECTING"
	StateWait         = "WAIT"
	StateAuth         = "AUTH"
	StateAuthPending  = "AUTH_PENDING"
	StateGetConfig    = "GET_CONFIG"
	StateAssignIP     = "ASSIGN_IP"
	StateAddRoutes    = "ADD_ROUTES"
	StateConnected    = "CONNECTED"
	StateReconnecting = "RECONNECTING"
	StateExiting      = "EXITING"
	StateResolve      = "RESOLVE"
	StateTCPConnect   = "TCP_CONNECT"
)

// State is one line of daemon state history.
//
//	1560719601,CONNECTED,SUCCESS,10.8.0.6,203.0.113.7,1194,192.0.2.10,51820,fd00::6
//
// Absent columns are left at their zero values: the zero netip.Addr, port 0
// and an empty string.
type State struct {
	// UpSince is when the daemon entered this state.
	UpSince time.Time
	// Name is the state name, e.g. CONNECTED.
	Name string
	// Description is the optional detail, e.g. SUCCESS or SIGTERM.
	Description string
	// LocalVirtualIPv4 is the tunnel address assigned to this end.
	LocalVirtualIPv4 netip.Addr
	// RemoteAddr is the address of the peer; absent in server mode.
	RemoteAddr netip.Addr
	// RemotePort is the peer port.
	RemotePort int
	// LocalAddr is the local socket address.
	LocalAddr netip.Addr
	// LocalPort is the local socket port.
	LocalPort int
	// LocalVirtualIPv6 is the IPv6 tunnel address, on daemons that report it.
	LocalVirtualIPv6 netip.Addr
}

// ParseState parses the reply to the "state" command. Notification lines
// interleaved with the reply are skipped; reading stops at END.
func ParseState(raw string) (*State, error) {
	return ParseStateWith(mgmt.DefaultPrefixes, raw)
}

// ParseStateWith is ParseState with the interleaved notification tags taken
// from prefixes.
func ParseStateWith(prefixes mgmt.PrefixSet, raw string) (*State, error) {
	s := &State{}
	if err := s.ParseRawWith(prefixes, raw); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseRaw implements common.Model.
func (s *State) ParseRaw(raw string) error {
	return s.ParseRawWith(mgmt.DefaultPrefixes, raw)
}

// ParseRawWith populates s, skipping notifications recognized by prefixes.
func (s *State) ParseRawWith(prefixes mgmt.PrefixSet, raw string) error {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if prefixes.IsNotification(line) {
			continue
		}
		trimmed, ok := mgmt.ParseString(line)
		if !ok {
			continue
		}
		if trimmed == common.EndMarker {
			break
		}
		parsed, err := ParseStateLine(trimmed)
		if err != nil {
			return err
		}
		*s = *parsed
		return nil
	}
	return fmt.Errorf("%w: no state line in reply", ErrParse)
}

// ParseStateLine parses a single comma-separated state line, which is also
// the message body of a >STATE notification. Older daemons omit the trailing
// columns; only the time and name are required.
func ParseStateLine(line string) (*State, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: state line %q has %d columns", ErrParse, line, len(parts))
	}
	col := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	s := &State{}
	var err error

	if s.UpSince, _, err = mgmt.ParseUnixTime(col(0)); err != nil {
		return nil, columnError("up since", err)
	}
	s.Name, _ = mgmt.ParseString(col(1))
	s.Description, _ = mgmt.ParseString(col(2))
	if s.LocalVirtualIPv4, err = mgmt.ParseIPAddress(col(3)); err != nil {
		return nil, columnError("local virtual address", err)
	}
	if s.RemoteAddr, err = mgmt.ParseIPAddress(col(4)); err != nil {
		return nil, columnError("remote address", err)
	}
	if s.RemotePort, err = parsePort(col(5)); err != nil {
		return nil, columnError("remote port", err)
	}
	if s.LocalAddr, err = mgmt.ParseIPAddress(col(6)); err != nil {
		return nil, columnError("local address", err)
	}
	if s.LocalPort, err = parsePort(col(7)); err != nil {
		return nil, columnError("local port", err)
	}
	if s.LocalVirtualIPv6, err = mgmt.ParseIPAddress(col(8)); err != nil {
		return nil, columnError("local virtual ipv6 address", err)
	}
	return s, nil
}

// Mode reports whether the daemon runs as a client or a server.
// Servers have no remote peer in their state line.
func (s *State) Mode() string {
	if s.RemoteAddr.IsValid() {
		return common.ModeClient
	}
	return common.ModeServer
}

// ConnectionStatus maps the daemon state name onto a ConnectionStatus.
func (s *State) ConnectionStatus() ConnectionStatus {
	return StatusFromStateName(s.Name)
}

// StatusFromStateName maps a daemon state name onto a ConnectionStatus.
// Unrecognized names map to StatusDisconnected.
func StatusFromStateName(name string) ConnectionStatus {
	switch strings.ToUpper(name) {
	case StateConnecting, StateWait, StateAuth, StateAuthPending, StateGetConfig,
		StateAssignIP, StateAddRoutes, StateReconnecting, StateResolve, StateTCPConnect:
		return StatusConnecting
	case StateConnected:
		return StatusConnected
	case StateExiting:
		return StatusDisconnecting
	default:
		return StatusDisconnected
	}
}

func parsePort(raw string) (int, error) {
	n, ok, err := mgmt.ParseInt(raw)
	if err != nil || !ok {
		return 0, err
	}
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("%w: port %d out of range", mgmt.ErrFormat, n)
	}
	return int(n), nil
}

func columnError(column string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrParse, column, err)
}
