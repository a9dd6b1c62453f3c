// Package vpn provides typed records parsed from OpenVPN management output.
// This file contains the Tracker, which folds a stream of notification
// lines into a snapshot of the connection.
package vpn

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// ConnectionStatus represents the current state of a VPN connection.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active connection.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a connection is being established.
	StatusConnecting
	// StatusConnected indicates an active, established connection.
	StatusConnected
	// StatusDisconnecting indicates the connection is being terminated.
	StatusDisconnecting
	// StatusError indicates the connection failed or encountered an error.
	StatusError
)

// String returns a human-readable representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ByteCount is a pair of traffic counters.
type ByteCount struct {
	In  uint64
	Out uint64
}

// Snapshot is the connection as seen through the notifications fed so far.
type Snapshot struct {
	Status ConnectionStatus
	// StateName is the last daemon state name, e.g. ASSIGN_IP.
	StateName string
	// Since is when the connection reached CONNECTED.
	Since     time.Time
	VirtualIP netip.Addr
	Remote    netip.AddrPort
	Bytes     ByteCount
	// ClientBytes holds per-client counters from BYTECOUNT_CLI, keyed by client ID.
	ClientBytes map[int64]ByteCount
	// Held is true while the daemon waits for a hold release.
	Held      bool
	LastError string
	// Lines counts every line fed, Notifications only recognized ones.
	Lines         int
	Notifications int
	Malformed     int
}

// Uptime returns how long the connection has been up at now.
func (s Snapshot) Uptime(now time.Time) time.Duration {
	if s.Status != StatusConnected || s.Since.IsZero() {
		return 0
	}
	return now.Sub(s.Since)
}

// Tracker consumes management lines one at a time and maintains a Snapshot.
// Line splitting is the caller's job. Tracker is safe for concurrent use.
type Tracker struct {
	mu               sync.RWMutex
	prefixes         mgmt.PrefixSet
	snap             Snapshot
	counts           map[string]int
	onStatusChange   func(oldStatus, newStatus ConnectionStatus)
	onAuthFailed     func(challenge bool)
	onNotification   func(n mgmt.Notification)
	authFailedCalled bool
}

// NewTracker creates a Tracker recognizing the tags in prefixes.
func NewTracker(prefixes mgmt.PrefixSet) *Tracker {
	return &Tracker{
		prefixes: prefixes,
		snap:     Snapshot{ClientBytes: make(map[int64]ByteCount)},
		counts:   make(map[string]int),
	}
}

// SetOnStatusChange sets a callback invoked after every status transition.
func (t *Tracker) SetOnStatusChange(handler func(oldStatus, newStatus ConnectionStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStatusChange = handler
}

// SetOnAuthFailed sets a callback for authentication failures.
// challenge is true when the server asked for a dynamic challenge (CRV1),
// which usually means an OTP is required. The callback fires once per Tracker.
func (t *Tracker) SetOnAuthFailed(handler func(challenge bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAuthFailed = handler
}

// SetOnNotification sets a callback receiving every recognized notification.
func (t *Tracker) SetOnNotification(handler func(n mgmt.Notification)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNotification = handler
}

// Feed processes one line. Reply lines are counted and otherwise ignored.
// A malformed notification or an unparsable payload is returned as an error
// and leaves the snapshot unchanged apart from the counters.
func (t *Tracker) Feed(line string) error {
	n, ok, err := t.prefixes.Split(line)

	t.mu.Lock()
	t.snap.Lines++
	if err != nil {
		t.snap.Malformed++
		t.mu.Unlock()
		common.LogDebug("Tracker: skipping malformed line %q", line)
		return err
	}
	if !ok {
		t.mu.Unlock()
		return nil
	}

	t.snap.Notifications++
	t.counts[n.Type]++
	oldStatus := t.snap.Status
	err = t.apply(n)
	newStatus := t.snap.Status
	onStatusChange := t.onStatusChange
	onNotification := t.onNotification
	t.mu.Unlock()

	if onNotification != nil {
		onNotification(n)
	}
	if oldStatus != newStatus {
		common.LogInfo("Tracker: status %s -> %s", oldStatus, newStatus)
		if onStatusChange != nil {
			onStatusChange(oldStatus, newStatus)
		}
	}
	if err != nil {
		return fmt.Errorf("%s notification: %w", n.Type, err)
	}
	return nil
}

// apply folds n into the snapshot. Caller holds t.mu.
func (t *Tracker) apply(n mgmt.Notification) error {
	switch n.Type {
	case "STATE":
		return t.applyState(n.Message)
	case "BYTECOUNT":
		return t.applyByteCount(n.Message)
	case "BYTECOUNT_CLI":
		return t.applyClientByteCount(n.Message)
	case "FATAL":
		t.snap.Status = StatusError
		t.snap.LastError = strings.TrimSpace(n.Message)
	case "HOLD":
		t.snap.Held = true
	case "PASSWORD":
		t.applyPassword(n.Message)
	case "LOG":
		t.applyLog(n.Message)
	}
	return nil
}

func (t *Tracker) applyState(message string) error {
	state, err := ParseStateLine(message)
	if err != nil {
		return err
	}
	t.snap.Held = false
	t.snap.StateName = state.Name
	t.snap.Status = state.ConnectionStatus()

	if state.LocalVirtualIPv4.IsValid() {
		t.snap.VirtualIP = state.LocalVirtualIPv4
	} else if state.LocalVirtualIPv6.IsValid() {
		t.snap.VirtualIP = state.LocalVirtualIPv6
	}
	if state.RemoteAddr.IsValid() {
		t.snap.Remote = netip.AddrPortFrom(state.RemoteAddr, uint16(state.RemotePort))
	}
	if t.snap.Status == StatusConnected {
		t.snap.Since = state.UpSince
		t.snap.LastError = ""
	}
	return nil
}

func (t *Tracker) applyByteCount(message string) error {
	in, out, found := strings.Cut(message, ",")
	if !found {
		return fmt.Errorf("%w: bytecount %q", ErrParse, message)
	}
	bc, err := parseByteCount(in, out)
	if err != nil {
		return err
	}
	t.snap.Bytes = bc
	return nil
}

func (t *Tracker) applyClientByteCount(message string) error {
	parts := strings.Split(message, ",")
	if len(parts) != 3 {
		return fmt.Errorf("%w: client bytecount %q", ErrParse, message)
	}
	cid, ok, err := mgmt.ParseInt(parts[0])
	if err != nil {
		return columnError("client id", err)
	}
	if !ok {
		return fmt.Errorf("%w: client bytecount without client id", ErrParse)
	}
	bc, err := parseByteCount(parts[1], parts[2])
	if err != nil {
		return err
	}
	t.snap.ClientBytes[cid] = bc
	return nil
}

func parseByteCount(in, out string) (ByteCount, error) {
	var bc ByteCount
	var err error
	if bc.In, _, err = mgmt.ParseUint(in); err != nil {
		return ByteCount{}, columnError("bytes in", err)
	}
	if bc.Out, _, err = mgmt.ParseUint(out); err != nil {
		return ByteCount{}, columnError("bytes out", err)
	}
	return bc, nil
}

// applyPassword handles >PASSWORD messages. Only verification failures
// change the snapshot; credential prompts are left to the caller.
func (t *Tracker) applyPassword(message string) {
	if !strings.HasPrefix(message, "Verification Failed") {
		return
	}
	challenge := strings.Contains(message, "CRV1")
	t.snap.Status = StatusError
	t.snap.LastError = "Authentication failed - verify username/password/OTP"
	common.LogWarn("Tracker: authentication failed (challenge=%v)", challenge)

	if t.onAuthFailed != nil && !t.authFailedCalled {
		t.authFailedCalled = true
		go t.onAuthFailed(challenge)
	}
}

// applyLog watches real-time log lines for completion of the handshake,
// which older daemons report only through the log.
func (t *Tracker) applyLog(message string) {
	// time,flags,text
	parts := strings.SplitN(message, ",", 3)
	text := parts[len(parts)-1]
	if strings.Contains(text, "Initialization Sequence Completed") && t.snap.Status != StatusError {
		t.snap.Status = StatusConnected
	}
}

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.snap
	snap.ClientBytes = make(map[int64]ByteCount, len(t.snap.ClientBytes))
	for k, v := range t.snap.ClientBytes {
		snap.ClientBytes[k] = v
	}
	return snap
}

// Counts returns how many notifications of each type have been fed.
func (t *Tracker) Counts() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		counts[k] = v
	}
	return counts
}
