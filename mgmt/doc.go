// Package mgmt holds the primitive parsing contracts shared by every record
// read from the OpenVPN management interface.
//
// The interface mixes three kinds of lines on one channel: replies to
// commands, tabular status dumps, and real-time notifications pushed by the
// daemon. Notifications start with '>' followed by a type tag and a ':'
// separator:
//
//	>STATE:1560719601,CONNECTED,SUCCESS,10.8.0.6,203.0.113.7,1194,,
//	>BYTECOUNT:1532,2210
//	>LOG:1560719601,I,Initialization Sequence Completed
//
// Scalar columns are converted with ParseString, ParseInt and
// ParseIPAddress. An empty or all-whitespace column is absent, which is
// reported through a false ok value or a zero result and is never an error.
// A column that is present but does not match its format fails with
// ErrFormat.
//
// SplitNotification separates a notification into its tag and message.
// Lines without the sigil, and lines whose tag is not in the PrefixSet, are
// not notifications. A sigil line with no separator fails with
// ErrMalformedNotification.
//
// Everything in this package is a pure function of its arguments and safe
// for concurrent use. Reading from the daemon and splitting the byte stream
// into lines is left to the caller.
package mgmt
