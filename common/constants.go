// Package common provides shared constants, types, and utilities
// used across the management parser.
package common

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "OpenVPN Management Inspector"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "ovpn-mgmt"
)

// File names used by the application.
const (
	ConfigFileName  = "config.yaml"
	ArchiveFileName = "archive.db"
	LogFileName     = "ovpn-mgmt.log"
)

// Management protocol framing.
const (
	// NotificationSigil introduces a real-time notification line.
	NotificationSigil = ">"
	// FieldSeparator splits a notification tag from its message.
	FieldSeparator = ":"
	// EndMarker terminates multi-line command replies.
	EndMarker = "END"
	// SuccessPrefix introduces a successful single-line command reply.
	SuccessPrefix = "SUCCESS:"
	// ErrorPrefix introduces a failed single-line command reply.
	ErrorPrefix = "ERROR:"
)

// Color modes for terminal output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Operating modes reported by State.Mode.
const (
	ModeClient = "client"
	ModeServer = "server"
)
