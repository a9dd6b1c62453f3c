package mgmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yllada/ovpn-mgmt/common"
)

// Notification is a real-time message pushed by the daemon.
type Notification struct {
	// Type is the tag between the sigil and the first separator.
	Type string
	// Message is everything after the first separator, verbatim.
	Message string
}

// String renders the notification back into its wire form.
func (n Notification) String() string {
	return common.NotificationSigil + n.Type + common.FieldSeparator + n.Message
}

// PrefixSet is a fixed vocabulary of notification tags.
// It cannot be modified once built, so a single set may be shared freely.
type PrefixSet struct {
	tags map[string]struct{}
}

// defaultTags are the notification types documented for the management
// interface.
var defaultTags = []string{
	"BYTECOUNT",
	"BYTECOUNT_CLI",
	"CLIENT",
	"ECHO",
	"FATAL",
	"HOLD",
	"INFO",
	"INFOMSG",
	"LOG",
	"NEED-CERTIFICATE",
	"NEED-OK",
	"NEED-STR",
	"NOTIFY",
	"PASSWORD",
	"PK_SIGN",
	"PKCS11ID-COUNT",
	"PKCS11ID-ENTRY",
	"PROXY",
	"REMOTE",
	"RSA_SIGN",
	"STATE",
}

// DefaultPrefixes is the set used by SplitNotification and IsNotification.
var DefaultPrefixes = NewPrefixSet(defaultTags...)

// NewPrefixSet builds a set from tags. Tags are matched exactly.
func NewPrefixSet(tags ...string) PrefixSet {
	m := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		m[tag] = struct{}{}
	}
	return PrefixSet{tags: m}
}

// With returns a new set holding the receiver's tags plus extra.
func (s PrefixSet) With(extra ...string) PrefixSet {
	return NewPrefixSet(append(s.Tags(), extra...)...)
}

// Contains reports whether tag is a recognized notification type.
func (s PrefixSet) Contains(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// Len returns the number of tags in the set.
func (s PrefixSet) Len() int {
	return len(s.tags)
}

// Tags returns the tags in sorted order.
func (s PrefixSet) Tags() []string {
	tags := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Split decomposes line into a notification.
//
// ok is false for ordinary reply lines: those without the sigil and those
// whose tag is not in the set. A sigil line with no separator after the tag
// returns ErrMalformedNotification.
func (s PrefixSet) Split(line string) (n Notification, ok bool, err error) {
	rest, found := strings.CutPrefix(line, common.NotificationSigil)
	if !found {
		return Notification{}, false, nil
	}
	tag, message, found := strings.Cut(rest, common.FieldSeparator)
	if !found {
		return Notification{}, false, fmt.Errorf("%w: no %q after tag in %q", ErrMalformedNotification, common.FieldSeparator, line)
	}
	if !s.Contains(tag) {
		return Notification{}, false, nil
	}
	return Notification{Type: tag, Message: message}, true, nil
}

// IsNotification reports whether Split would return a notification for line.
// Malformed lines report false.
func (s PrefixSet) IsNotification(line string) bool {
	_, ok, err := s.Split(line)
	return err == nil && ok
}

// SplitNotification splits line using DefaultPrefixes.
func SplitNotification(line string) (Notification, bool, error) {
	return DefaultPrefixes.Split(line)
}

// IsNotification reports whether line is a notification under DefaultPrefixes.
func IsNotification(line string) bool {
	return DefaultPrefixes.IsNotification(line)
}
