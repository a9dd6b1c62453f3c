package mgmt

import (
	"strings"

	"github.com/yllada/ovpn-mgmt/common"
)

// LineKind describes what a single management line is.
type LineKind int

const (
	// KindData is an ordinary line of a multi-line reply.
	KindData LineKind = iota
	// KindNotification is a recognized real-time notification.
	KindNotification
	// KindMalformed carries the sigil but cannot be split.
	KindMalformed
	// KindSuccess is a "SUCCESS:" command reply.
	KindSuccess
	// KindError is an "ERROR:" command reply.
	KindError
	// KindEnd terminates a multi-line reply.
	KindEnd
)

// String returns a short lowercase label for the kind.
func (k LineKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindNotification:
		return "notification"
	case KindMalformed:
		return "malformed"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Line is a classified management line.
type Line struct {
	Kind         LineKind
	Raw          string
	Notification Notification // set when Kind is KindNotification
	Err          error        // set when Kind is KindMalformed
}

// Classify sorts line into one of the LineKind buckets.
func (s PrefixSet) Classify(line string) Line {
	n, ok, err := s.Split(line)
	switch {
	case err != nil:
		return Line{Kind: KindMalformed, Raw: line, Err: err}
	case ok:
		return Line{Kind: KindNotification, Raw: line, Notification: n}
	case strings.HasPrefix(line, common.SuccessPrefix):
		return Line{Kind: KindSuccess, Raw: line}
	case strings.HasPrefix(line, common.ErrorPrefix):
		return Line{Kind: KindError, Raw: line}
	case strings.TrimSpace(line) == common.EndMarker:
		return Line{Kind: KindEnd, Raw: line}
	default:
		return Line{Kind: KindData, Raw: line}
	}
}
