package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/config"
)

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Color = common.ColorNever
	cfg.ArchivePath = filepath.Join(t.TempDir(), "archive.db")

	var out bytes.Buffer
	c, err := New(cfg, &out)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, &out
}

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader(">HOLD:Waiting\r\nSUCCESS: ok\r\nlast"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{">HOLD:Waiting", "SUCCESS: ok", "last"}
	if len(lines) != len(want) {
		t.Fatalf("readLines() = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCLI_Classify(t *testing.T) {
	c, out := newTestCLI(t)
	input := strings.Join([]string{
		">STATE:123,CONNECTED,SUCCESS",
		">BOGUS:hello",
		">NOSEP",
		"SUCCESS: pid=42",
		"END",
	}, "\n")

	if err := c.Classify(context.Background(), strings.NewReader(input), "test", false); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"notification  STATE             123,CONNECTED,SUCCESS",
		"malformed",
		"success",
		"5 lines: 1 notifications, 1 malformed, 3 replies",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("color never should not emit escape codes")
	}
}

func TestCLI_ClassifyArchiveAndHistory(t *testing.T) {
	ctx := context.Background()
	c, out := newTestCLI(t)

	input := ">STATE:123,CONNECTED,SUCCESS\n>BYTECOUNT:10,20\nEND\n"
	if err := c.Classify(ctx, strings.NewReader(input), "capture.log", true); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !strings.Contains(out.String(), "Archived as session ") {
		t.Fatalf("missing archive line:\n%s", out.String())
	}

	out.Reset()
	if err := c.History(ctx, ""); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if !strings.Contains(out.String(), "capture.log") {
		t.Errorf("History() missing session:\n%s", out.String())
	}
}

func TestCLI_HistoryWithoutArchive(t *testing.T) {
	c, out := newTestCLI(t)

	if err := c.History(context.Background(), ""); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if !strings.Contains(out.String(), "No archive yet") {
		t.Errorf("History() = %q", out.String())
	}
}

func TestCLI_State(t *testing.T) {
	c, out := newTestCLI(t)
	input := "1560719601,CONNECTED,SUCCESS,10.8.0.6,203.0.113.5,1194,,\nEND\n"

	if err := c.State(strings.NewReader(input)); err != nil {
		t.Fatalf("State() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"CONNECTED", "10.8.0.6", "203.0.113.5:1194"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCLI_Stats(t *testing.T) {
	c, out := newTestCLI(t)

	if err := c.Stats(strings.NewReader("SUCCESS: nclients=2,bytesin=100,bytesout=200\n")); err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if !strings.Contains(out.String(), "Clients") || !strings.Contains(out.String(), "200") {
		t.Errorf("Stats() output:\n%s", out.String())
	}
}

func TestCLI_StatusDetectsFormat(t *testing.T) {
	client := "OpenVPN STATISTICS\nUpdated,Thu Jun 18 08:12:15 2015\nTUN/TAP read bytes,153789941\nEND\n"
	server := strings.Join([]string{
		"OpenVPN CLIENT LIST",
		"Updated,Thu Jun 18 08:12:15 2015",
		"Common Name,Real Address,Bytes Received,Bytes Sent,Connected Since",
		"foo@example.com,10.10.10.10:49502,334948,1973012,Thu Jun 18 04:23:03 2015",
		"ROUTING TABLE",
		"Virtual Address,Common Name,Real Address,Last Ref",
		"192.168.255.118,foo@example.com,10.10.10.10:49502,Thu Jun 18 08:12:09 2015",
		"GLOBAL STATS",
		"Max bcast/mcast queue length,0",
		"END",
	}, "\n")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"client", client, "TUN/TAP read bytes"},
		{"server", server, "foo@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestCLI(t)
			if err := c.Status(strings.NewReader(tt.input)); err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestCLI_Track(t *testing.T) {
	c, out := newTestCLI(t)
	input := strings.Join([]string{
		">STATE:1560719601,CONNECTED,SUCCESS,10.8.0.6,203.0.113.5,1194,,",
		">BYTECOUNT:1532,2210",
		">NOSEP",
	}, "\n")

	if err := c.Track(strings.NewReader(input)); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"Connected", "10.8.0.6", "1532 / 2210", "1 malformed"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatHostPort(t *testing.T) {
	tests := []struct {
		valid bool
		host  string
		port  int
		want  string
	}{
		{false, "", 0, "-"},
		{true, "10.0.0.1", 0, "10.0.0.1"},
		{true, "10.0.0.1", 1194, "10.0.0.1:1194"},
		{true, "2001:db8::1", 1194, "[2001:db8::1]:1194"},
	}
	for _, tt := range tests {
		if got := formatHostPort(tt.valid, tt.host, tt.port); got != tt.want {
			t.Errorf("formatHostPort(%v, %q, %d) = %q, want %q", tt.valid, tt.host, tt.port, got, tt.want)
		}
	}
}

func TestCLI_ConfiguredTagsSkippedInReplies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Color = common.ColorNever
	cfg.ArchivePath = filepath.Join(t.TempDir(), "archive.db")
	cfg.ExtraNotificationPrefixes = []string{"CUSTOM"}

	tests := []struct {
		name  string
		run   func(c *CLI, input string) error
		input string
		want  string
	}{
		{
			name:  "state",
			run:   func(c *CLI, input string) error { return c.State(strings.NewReader(input)) },
			input: ">CUSTOM:hello\n1560719601,CONNECTED,SUCCESS,10.8.0.6,,,,\nEND\n",
			want:  "10.8.0.6",
		},
		{
			name:  "client status",
			run:   func(c *CLI, input string) error { return c.Status(strings.NewReader(input)) },
			input: ">CUSTOM:hello\nOpenVPN STATISTICS\nTUN/TAP read bytes,42\n>CUSTOM:again\nEND\n",
			want:  "TUN/TAP read bytes",
		},
		{
			name: "server status",
			run:  func(c *CLI, input string) error { return c.Status(strings.NewReader(input)) },
			input: strings.Join([]string{
				">CUSTOM:hello",
				"OpenVPN CLIENT LIST",
				"Common Name,Real Address,Bytes Received,Bytes Sent,Connected Since",
				">CUSTOM:again",
				"foo@example.com,10.10.10.10:49502,1,2,Thu Jun 18 04:23:03 2015",
				"ROUTING TABLE",
				"GLOBAL STATS",
				"END",
			}, "\n"),
			want: "foo@example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c, err := New(cfg, &out)
			if err != nil {
				t.Fatal(err)
			}
			if err := tt.run(c, tt.input); err != nil {
				t.Fatalf("error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}
