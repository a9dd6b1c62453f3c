// Package vpn provides typed records parsed from OpenVPN management output.
//
// Every record is built on the primitives in package mgmt and implements
// common.Model:
//
//   - State: the reply to "state" and the payload of >STATE notifications
//   - ServerStats: the reply to "load-stats"
//   - ServerStatus: the server-mode reply to "status 1" (clients, routes, global stats)
//   - ClientStatistics: the client-mode reply to "status"
//
// # Tracking a connection
//
// Tracker folds real-time notifications into a Snapshot: connection status
// derived from >STATE, traffic counters from >BYTECOUNT and >BYTECOUNT_CLI,
// fatal errors and authentication failures. Feed it one line at a time:
//
//	tracker := vpn.NewTracker(mgmt.DefaultPrefixes)
//	for scanner.Scan() {
//	    if err := tracker.Feed(scanner.Text()); err != nil {
//	        common.LogWarn("skipping line: %v", err)
//	    }
//	}
//	snap := tracker.Snapshot()
//
// # Errors
//
// Records fail with ErrParse when a reply does not have the expected shape.
// When a column is present but malformed the error also wraps
// mgmt.ErrFormat, so both can be tested with errors.Is.
//
// # Thread Safety
//
// Record parsers are pure functions. Tracker uses internal locking and may
// be fed from one goroutine while others read snapshots.
package vpn
