package vpn

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/yllada/ovpn-mgmt/mgmt"
)

func feedAll(t *testing.T, tracker *Tracker, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := tracker.Feed(line); err != nil {
			t.Fatalf("Feed(%q) error = %v", line, err)
		}
	}
}

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status   ConnectionStatus
		expected string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting..."},
		{StatusConnected, "Connected"},
		{StatusDisconnecting, "Disconnecting..."},
		{StatusError, "Error"},
		{ConnectionStatus(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("ConnectionStatus.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTracker_ConnectSequence(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)

	feedAll(t, tracker,
		">INFO:OpenVPN Management Interface Version 3 -- type 'help' for more info",
		">HOLD:Waiting for hold release:0",
		"SUCCESS: hold release succeeded",
		">STATE:1560719590,WAIT,,,,,,",
		">STATE:1560719595,AUTH,,,,,,",
		">STATE:1560719598,ASSIGN_IP,,10.8.0.6,,,,",
		">STATE:1560719601,CONNECTED,SUCCESS,10.8.0.6,203.0.113.7,1194,,",
		">BYTECOUNT:1532,2210",
	)

	snap := tracker.Snapshot()
	if snap.Status != StatusConnected {
		t.Errorf("Status = %v, want Connected", snap.Status)
	}
	if snap.StateName != StateConnected {
		t.Errorf("StateName = %q", snap.StateName)
	}
	if snap.Held {
		t.Error("Held should be cleared by a STATE notification")
	}
	if snap.VirtualIP != netip.MustParseAddr("10.8.0.6") {
		t.Errorf("VirtualIP = %v", snap.VirtualIP)
	}
	if snap.Remote != netip.MustParseAddrPort("203.0.113.7:1194") {
		t.Errorf("Remote = %v", snap.Remote)
	}
	if snap.Bytes != (ByteCount{In: 1532, Out: 2210}) {
		t.Errorf("Bytes = %+v", snap.Bytes)
	}
	if !snap.Since.Equal(time.Unix(1560719601, 0)) {
		t.Errorf("Since = %v", snap.Since)
	}
	if snap.Lines != 8 || snap.Notifications != 7 || snap.Malformed != 0 {
		t.Errorf("counters = %d/%d/%d", snap.Lines, snap.Notifications, snap.Malformed)
	}

	counts := tracker.Counts()
	if counts["STATE"] != 4 || counts["BYTECOUNT"] != 1 || counts["HOLD"] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestTracker_StatusChangeCallback(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)

	var transitions []ConnectionStatus
	tracker.SetOnStatusChange(func(oldStatus, newStatus ConnectionStatus) {
		transitions = append(transitions, newStatus)
	})

	feedAll(t, tracker,
		">STATE:1,CONNECTING,,,,,,",
		">STATE:2,WAIT,,,,,,",
		">STATE:3,CONNECTED,SUCCESS,10.8.0.6,,,,",
		">STATE:4,EXITING,SIGTERM,,,,,",
	)

	want := []ConnectionStatus{StatusConnecting, StatusConnected, StatusDisconnecting}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestTracker_Fatal(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)
	feedAll(t, tracker, ">FATAL:Cannot open TUN/TAP dev /dev/net/tun")

	snap := tracker.Snapshot()
	if snap.Status != StatusError || snap.LastError != "Cannot open TUN/TAP dev /dev/net/tun" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestTracker_AuthFailed(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)

	var wg sync.WaitGroup
	wg.Add(1)
	calls := 0
	var gotChallenge bool
	tracker.SetOnAuthFailed(func(challenge bool) {
		calls++
		gotChallenge = challenge
		wg.Done()
	})

	feedAll(t, tracker,
		">PASSWORD:Need 'Auth' username/password",
		">PASSWORD:Verification Failed: 'Auth' ['CRV1:R,E:Om01u7Fh4LrGBS7uh0SWmzwabUiGiW6l:Y3Ix:Please enter token PIN']",
		">PASSWORD:Verification Failed: 'Auth'",
	)
	wg.Wait()

	if calls != 1 {
		t.Errorf("auth failed callback called %d times, want 1", calls)
	}
	if !gotChallenge {
		t.Error("challenge should be reported for CRV1 failures")
	}
	if snap := tracker.Snapshot(); snap.Status != StatusError || snap.LastError == "" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestTracker_LogCompletion(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)
	feedAll(t, tracker,
		">STATE:1,ADD_ROUTES,,10.8.0.6,,,,",
		">LOG:1560719601,I,Initialization Sequence Completed",
	)

	if snap := tracker.Snapshot(); snap.Status != StatusConnected {
		t.Errorf("Status = %v, want Connected", snap.Status)
	}
}

func TestTracker_ClientByteCount(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)
	feedAll(t, tracker,
		">BYTECOUNT_CLI:0,100,200",
		">BYTECOUNT_CLI:7,5,6",
		">BYTECOUNT_CLI:0,150,250",
	)

	snap := tracker.Snapshot()
	if len(snap.ClientBytes) != 2 {
		t.Fatalf("ClientBytes = %v", snap.ClientBytes)
	}
	if snap.ClientBytes[0] != (ByteCount{In: 150, Out: 250}) {
		t.Errorf("ClientBytes[0] = %+v", snap.ClientBytes[0])
	}

	// The snapshot is a copy.
	snap.ClientBytes[0] = ByteCount{}
	if tracker.Snapshot().ClientBytes[0].In != 150 {
		t.Error("modifying a snapshot must not affect the tracker")
	}
}

func TestTracker_Errors(t *testing.T) {
	tests := []struct {
		name          string
		line          string
		wantMalformed bool
	}{
		{"malformed", ">NOSEP", true},
		{"bad bytecount", ">BYTECOUNT:lots,2", false},
		{"bytecount without comma", ">BYTECOUNT:12", false},
		{"bad client bytecount", ">BYTECOUNT_CLI:1,2", false},
		{"bad state", ">STATE:soon,CONNECTED", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(mgmt.DefaultPrefixes)
			err := tracker.Feed(tt.line)
			if err == nil {
				t.Fatalf("Feed(%q) should fail", tt.line)
			}
			if errors.Is(err, mgmt.ErrMalformedNotification) != tt.wantMalformed {
				t.Errorf("Feed(%q) error = %v", tt.line, err)
			}
			snap := tracker.Snapshot()
			if (snap.Malformed == 1) != tt.wantMalformed {
				t.Errorf("Malformed = %d", snap.Malformed)
			}
			if snap.Status != StatusDisconnected {
				t.Errorf("Status = %v, want unchanged", snap.Status)
			}
		})
	}
}

func TestTracker_IgnoresReplies(t *testing.T) {
	tracker := NewTracker(mgmt.DefaultPrefixes)
	feedAll(t, tracker, "SUCCESS: pid=42", ">BOGUS:hello", "END")

	snap := tracker.Snapshot()
	if snap.Lines != 3 || snap.Notifications != 0 {
		t.Errorf("counters = %d/%d", snap.Lines, snap.Notifications)
	}
}

func TestTracker_NotificationCallback(t *testing.T) {
	tracker := NewTracker(mgmt.NewPrefixSet("ECHO"))

	var got []mgmt.Notification
	tracker.SetOnNotification(func(n mgmt.Notification) {
		got = append(got, n)
	})
	feedAll(t, tracker, ">ECHO:1560719601,hello", ">STATE:1,CONNECTED")

	if len(got) != 1 || got[0].Type != "ECHO" || got[0].Message != "1560719601,hello" {
		t.Errorf("notifications = %+v", got)
	}
	if tracker.Snapshot().Status != StatusDisconnected {
		t.Error("STATE is not in the custom prefix set and must be ignored")
	}
}

func TestSnapshot_Uptime(t *testing.T) {
	now := time.Now()
	snap := Snapshot{
		Status: StatusConnected,
		Since:  now.Add(-5 * time.Minute),
	}

	if got := snap.Uptime(now); got != 5*time.Minute {
		t.Errorf("Uptime() = %v, want 5m", got)
	}

	snap.Status = StatusDisconnected
	if snap.Uptime(now) != 0 {
		t.Error("Uptime() should return 0 for disconnected connections")
	}
}
