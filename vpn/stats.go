package vpn

import (
	"fmt"
	"strings"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// ServerStats is the reply to the "load-stats" command:
//
//	SUCCESS: nclients=1,bytesin=556794,bytesout=1483013
type ServerStats struct {
	ClientCount int64
	BytesIn     uint64
	BytesOut    uint64
}

// ParseServerStats parses a load-stats reply.
func ParseServerStats(raw string) (*ServerStats, error) {
	s := &ServerStats{}
	if err := s.ParseRaw(raw); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseRaw implements common.Model.
func (s *ServerStats) ParseRaw(raw string) error {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		body, found := strings.CutPrefix(line, common.SuccessPrefix)
		if !found {
			continue
		}
		return s.parseFields(body)
	}
	return fmt.Errorf("%w: no load-stats reply", ErrParse)
}

func (s *ServerStats) parseFields(body string) error {
	seen := make(map[string]bool, 3)
	for _, field := range strings.Split(body, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(field), "=")
		if !found {
			continue
		}
		var err error
		switch key {
		case "nclients":
			s.ClientCount, _, err = mgmt.ParseInt(value)
		case "bytesin":
			s.BytesIn, _, err = mgmt.ParseUint(value)
		case "bytesout":
			s.BytesOut, _, err = mgmt.ParseUint(value)
		default:
			continue
		}
		if err != nil {
			return columnError(key, err)
		}
		seen[key] = true
	}
	for _, key := range []string{"nclients", "bytesin", "bytesout"} {
		if !seen[key] {
			return fmt.Errorf("%w: load-stats reply missing %s", ErrParse, key)
		}
	}
	return nil
}
