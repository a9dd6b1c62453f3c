// Package common provides shared constants, types, utilities, and interfaces
// used throughout the management parser.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Protocol framing characters, file names, color modes
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: The Model contract for record types and the Logger abstraction
//   - Logger: Leveled logging with optional rotated file output
//   - Utils: Small helpers for directories and string slices
//
// # Usage
//
//	import "github.com/yllada/ovpn-mgmt/common"
//
//	common.LogDebug("classified %d lines", n)
//
//	if errors.Is(err, common.ErrFormat) {
//	    // Handle a column that is present but malformed
//	}
package common
