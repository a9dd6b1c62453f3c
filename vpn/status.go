package vpn

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// Section titles and keys of the version 1 status dump.
const (
	titleClientList  = "OpenVPN CLIENT LIST"
	titleRoutes      = "ROUTING TABLE"
	titleGlobalStats = "GLOBAL STATS"
	titleStatistics  = "OpenVPN STATISTICS"

	keyUpdated       = "Updated"
	keyMaxBcastQueue = "Max bcast/mcast queue length"
)

// Client is one row of the server's client list.
type Client struct {
	CommonName     string
	RealAddress    netip.AddrPort
	BytesReceived  uint64
	BytesSent      uint64
	ConnectedSince time.Time
}

// Route is one row of the server's routing table.
type Route struct {
	// VirtualAddress is the column as printed by the daemon.
	VirtualAddress string
	// Network is VirtualAddress as a prefix; invalid for non-IP entries.
	Network     netip.Prefix
	CommonName  string
	RealAddress netip.AddrPort
	LastRef     time.Time
}

// Netmask renders the route's network mask, e.g. "255.255.255.0".
func (r Route) Netmask() string {
	return netmaskString(r.Network)
}

// ServerStatus is the server-mode reply to "status 1".
//
//	OpenVPN CLIENT LIST
//	Updated,Thu Jun 18 08:12:15 2015
//	Common Name,Real Address,Bytes Received,Bytes Sent,Connected Since
//	foo@example.com,10.10.10.10:49502,334948,1973012,Thu Jun 18 04:23:03 2015
//	ROUTING TABLE
//	Virtual Address,Common Name,Real Address,Last Ref
//	192.168.255.118,foo@example.com,10.10.10.10:49502,Thu Jun 18 08:12:09 2015
//	GLOBAL STATS
//	Max bcast/mcast queue length,0
//	END
type ServerStatus struct {
	Updated                  time.Time
	Clients                  []Client
	Routes                   []Route
	MaxBcastMcastQueueLength int64
	// GlobalStats keeps every GLOBAL STATS row verbatim.
	GlobalStats map[string]string
}

// ParseServerStatus parses a server-mode status dump.
func ParseServerStatus(raw string) (*ServerStatus, error) {
	return ParseServerStatusWith(mgmt.DefaultPrefixes, raw)
}

// ParseServerStatusWith is ParseServerStatus with the interleaved
// notification tags taken from prefixes.
func ParseServerStatusWith(prefixes mgmt.PrefixSet, raw string) (*ServerStatus, error) {
	s := &ServerStatus{}
	if err := s.ParseRawWith(prefixes, raw); err != nil {
		return nil, err
	}
	return s, nil
}

type statusSection int

const (
	sectionNone statusSection = iota
	sectionClients
	sectionRoutes
	sectionGlobal
)

// ParseRaw implements common.Model.
func (s *ServerStatus) ParseRaw(raw string) error {
	return s.ParseRawWith(mgmt.DefaultPrefixes, raw)
}

// ParseRawWith populates s, skipping notifications recognized by prefixes.
func (s *ServerStatus) ParseRawWith(prefixes mgmt.PrefixSet, raw string) error {
	*s = ServerStatus{GlobalStats: make(map[string]string)}
	section := sectionNone
	sawHeader := false
	terminated := false

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if prefixes.IsNotification(line) {
			continue
		}
		trimmed, ok := mgmt.ParseString(line)
		if !ok {
			continue
		}

		switch trimmed {
		case titleClientList:
			section, sawHeader = sectionClients, true
			continue
		case titleRoutes:
			section = sectionRoutes
			continue
		case titleGlobalStats:
			section = sectionGlobal
			continue
		case common.EndMarker:
			terminated = true
		}
		if terminated {
			break
		}
		if !sawHeader {
			return fmt.Errorf("%w: line %d: expected %q, got %q", ErrParse, i+1, titleClientList, trimmed)
		}

		parts := strings.Split(trimmed, ",")
		var err error
		switch section {
		case sectionClients:
			err = s.parseClientRow(parts)
		case sectionRoutes:
			err = s.parseRouteRow(parts)
		case sectionGlobal:
			err = s.parseGlobalRow(parts)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	if !sawHeader {
		return fmt.Errorf("%w: no client list in status reply", ErrParse)
	}
	if !terminated {
		return fmt.Errorf("%w: status reply not terminated by %s", ErrParse, common.EndMarker)
	}
	return nil
}

func (s *ServerStatus) parseClientRow(parts []string) error {
	switch parts[0] {
	case keyUpdated:
		return s.parseUpdated(parts)
	case "Common Name":
		return nil
	}
	if len(parts) < 5 {
		return fmt.Errorf("%w: client row has %d columns", ErrParse, len(parts))
	}

	c := Client{}
	var err error
	c.CommonName, _ = mgmt.ParseString(parts[0])
	if c.RealAddress, err = mgmt.ParseAddrPort(parts[1]); err != nil {
		return columnError("real address", err)
	}
	if c.BytesReceived, _, err = mgmt.ParseUint(parts[2]); err != nil {
		return columnError("bytes received", err)
	}
	if c.BytesSent, _, err = mgmt.ParseUint(parts[3]); err != nil {
		return columnError("bytes sent", err)
	}
	if c.ConnectedSince, _, err = mgmt.ParseTime(parts[4]); err != nil {
		return columnError("connected since", err)
	}
	s.Clients = append(s.Clients, c)
	return nil
}

func (s *ServerStatus) parseRouteRow(parts []string) error {
	if parts[0] == "Virtual Address" {
		return nil
	}
	if len(parts) < 4 {
		return fmt.Errorf("%w: routing row has %d columns", ErrParse, len(parts))
	}

	r := Route{}
	var err error
	r.VirtualAddress, _ = mgmt.ParseString(parts[0])
	r.Network, _ = normalizeNetworkRoute(r.VirtualAddress)
	r.CommonName, _ = mgmt.ParseString(parts[1])
	if r.RealAddress, err = mgmt.ParseAddrPort(parts[2]); err != nil {
		return columnError("real address", err)
	}
	if r.LastRef, _, err = mgmt.ParseTime(parts[3]); err != nil {
		return columnError("last ref", err)
	}
	s.Routes = append(s.Routes, r)
	return nil
}

func (s *ServerStatus) parseGlobalRow(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("%w: global stats row has %d columns", ErrParse, len(parts))
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	s.GlobalStats[key] = value

	if key == keyMaxBcastQueue {
		n, _, err := mgmt.ParseInt(value)
		if err != nil {
			return columnError(key, err)
		}
		s.MaxBcastMcastQueueLength = n
	}
	return nil
}

func (s *ServerStatus) parseUpdated(parts []string) error {
	if len(parts) < 2 {
		return nil
	}
	t, _, err := mgmt.ParseTime(parts[1])
	if err != nil {
		return columnError("updated", err)
	}
	s.Updated = t
	return nil
}

// Client returns the client with the given common name.
func (s *ServerStatus) Client(commonName string) (Client, bool) {
	for _, c := range s.Clients {
		if c.CommonName == commonName {
			return c, true
		}
	}
	return Client{}, false
}

// ClientStatistics is the client-mode reply to "status":
//
//	OpenVPN STATISTICS
//	Updated,Thu Jun 18 08:12:15 2015
//	TUN/TAP read bytes,153789941
//	TCP/UDP write bytes,180490040
//	END
type ClientStatistics struct {
	Updated  time.Time
	Counters map[string]int64
	// Order lists counter names as they appeared.
	Order []string
}

// ParseClientStatistics parses a client-mode status dump.
func ParseClientStatistics(raw string) (*ClientStatistics, error) {
	return ParseClientStatisticsWith(mgmt.DefaultPrefixes, raw)
}

// ParseClientStatisticsWith is ParseClientStatistics with the interleaved
// notification tags taken from prefixes.
func ParseClientStatisticsWith(prefixes mgmt.PrefixSet, raw string) (*ClientStatistics, error) {
	s := &ClientStatistics{}
	if err := s.ParseRawWith(prefixes, raw); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseRaw implements common.Model.
func (s *ClientStatistics) ParseRaw(raw string) error {
	return s.ParseRawWith(mgmt.DefaultPrefixes, raw)
}

// ParseRawWith populates s, skipping notifications recognized by prefixes.
func (s *ClientStatistics) ParseRawWith(prefixes mgmt.PrefixSet, raw string) error {
	*s = ClientStatistics{Counters: make(map[string]int64)}
	sawHeader := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if prefixes.IsNotification(line) {
			continue
		}
		trimmed, ok := mgmt.ParseString(line)
		if !ok {
			continue
		}
		if trimmed == titleStatistics {
			sawHeader = true
			continue
		}
		if trimmed == common.EndMarker {
			if !sawHeader {
				break
			}
			return nil
		}
		if !sawHeader {
			return fmt.Errorf("%w: expected %q, got %q", ErrParse, titleStatistics, trimmed)
		}

		key, value, found := strings.Cut(trimmed, ",")
		if !found {
			return fmt.Errorf("%w: statistics row %q has no value", ErrParse, trimmed)
		}
		if key == keyUpdated {
			t, _, err := mgmt.ParseTime(value)
			if err != nil {
				return columnError("updated", err)
			}
			s.Updated = t
			continue
		}
		n, _, err := mgmt.ParseInt(value)
		if err != nil {
			return columnError(key, err)
		}
		if _, dup := s.Counters[key]; !dup {
			s.Order = append(s.Order, key)
		}
		s.Counters[key] = n
	}

	if !sawHeader {
		return fmt.Errorf("%w: no statistics in status reply", ErrParse)
	}
	return fmt.Errorf("%w: status reply not terminated by %s", ErrParse, common.EndMarker)
}

// Counter returns the named counter, e.g. "TUN/TAP read bytes".
func (s *ClientStatistics) Counter(name string) (int64, bool) {
	n, ok := s.Counters[name]
	return n, ok
}
