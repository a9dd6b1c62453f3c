// Package cli provides the command-line interface of the inspector.
// It reads captured management-interface output from a file or stdin,
// splits it into lines and prints the parsed records.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yllada/ovpn-mgmt/archive"
	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/config"
	"github.com/yllada/ovpn-mgmt/mgmt"
	"github.com/yllada/ovpn-mgmt/vpn"
)

// maxLineSize bounds a single management line. CLIENT:ENV blocks and
// certificate prompts can exceed bufio's 64KB default.
const maxLineSize = 1024 * 1024

// messageWidth is the widest message column printed by Classify.
const messageWidth = 96

// CLI represents the command-line interface.
type CLI struct {
	prefixes    mgmt.PrefixSet
	out         io.Writer
	style       styler
	archivePath string
}

// New creates a CLI writing to out with settings from cfg.
func New(cfg *config.Config, out io.Writer) (*CLI, error) {
	archivePath, err := cfg.ResolveArchivePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}

	return &CLI{
		prefixes:    cfg.Prefixes(),
		out:         out,
		style:       newStyler(cfg.Color),
		archivePath: archivePath,
	}, nil
}

// OpenInput opens path for reading; "-" means stdin.
// It returns a display name for the source alongside the reader.
func OpenInput(path string) (io.ReadCloser, string, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open input: %w", err)
	}
	return f, path, nil
}

// readLines splits r into lines, dropping the CR of CRLF terminators.
func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

// Classify prints one row per line with its kind and, for notifications,
// the tag and message. With record set, notifications are also stored in
// the archive under a new session.
func (c *CLI) Classify(ctx context.Context, r io.Reader, source string, record bool) error {
	lines, err := readLines(r)
	if err != nil {
		return err
	}

	var store *archive.Store
	var session archive.Session
	if record {
		store, err = archive.Open(c.archivePath)
		if err != nil {
			return err
		}
		defer store.Close()

		session, err = store.BeginSession(ctx, source)
		if err != nil {
			return err
		}
	}

	counts := make(map[mgmt.LineKind]int)
	fmt.Fprintf(c.out, "%s  %s  %s  %s\n",
		c.style.title(fmt.Sprintf("%6s", "LINE")),
		c.style.title(fmt.Sprintf("%-12s", "KIND")),
		c.style.title(fmt.Sprintf("%-16s", "TYPE")),
		c.style.title("MESSAGE"))

	for i, raw := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo := i + 1
		line := c.prefixes.Classify(raw)
		counts[line.Kind]++

		tag, message := "", line.Raw
		switch line.Kind {
		case mgmt.KindNotification:
			tag, message = line.Notification.Type, line.Notification.Message
			if store != nil {
				if err := store.Record(ctx, session.ID, lineNo, line.Notification); err != nil {
					return err
				}
			}
		case mgmt.KindMalformed:
			common.LogWarn("line %d: %v", lineNo, line.Err)
		}

		fmt.Fprintf(c.out, "%6d  %s  %s  %s\n",
			lineNo,
			c.style.kind(line.Kind, fmt.Sprintf("%-12s", line.Kind)),
			c.style.tag(fmt.Sprintf("%-16s", tag)),
			common.Truncate(message, messageWidth))
	}

	summary := fmt.Sprintf("%d lines: %d notifications, %d malformed, %d replies",
		len(lines), counts[mgmt.KindNotification], counts[mgmt.KindMalformed],
		len(lines)-counts[mgmt.KindNotification]-counts[mgmt.KindMalformed])
	fmt.Fprintln(c.out, c.style.muted(summary))

	if store != nil {
		fmt.Fprintf(c.out, "Archived as session %s\n", session.ID)
	}
	common.LogDebug("Classified %d lines from %s", len(lines), source)
	return nil
}

// State prints the reply to the "state" command.
func (c *CLI) State(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	state, err := vpn.ParseStateWith(c.prefixes, string(raw))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, c.style.title("STATE"))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", state.Name)
	fmt.Fprintf(w, "Status\t%s\n", state.ConnectionStatus())
	fmt.Fprintf(w, "Description\t%s\n", orDash(state.Description))
	fmt.Fprintf(w, "Mode\t%s\n", state.Mode())
	fmt.Fprintf(w, "Up since\t%s\n", formatTime(state.UpSince))
	fmt.Fprintf(w, "Virtual IPv4\t%s\n", formatAddr(state.LocalVirtualIPv4.IsValid(), state.LocalVirtualIPv4.String()))
	fmt.Fprintf(w, "Virtual IPv6\t%s\n", formatAddr(state.LocalVirtualIPv6.IsValid(), state.LocalVirtualIPv6.String()))
	fmt.Fprintf(w, "Remote\t%s\n", formatHostPort(state.RemoteAddr.IsValid(), state.RemoteAddr.String(), state.RemotePort))
	fmt.Fprintf(w, "Local\t%s\n", formatHostPort(state.LocalAddr.IsValid(), state.LocalAddr.String(), state.LocalPort))
	return w.Flush()
}

// Stats prints the reply to the "load-stats" command.
func (c *CLI) Stats(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	stats, err := vpn.ParseServerStats(string(raw))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, c.style.title("LOAD STATS"))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Clients\t%d\n", stats.ClientCount)
	fmt.Fprintf(w, "Bytes in\t%d\n", stats.BytesIn)
	fmt.Fprintf(w, "Bytes out\t%d\n", stats.BytesOut)
	return w.Flush()
}

// Status prints a status dump, detecting client or server format.
func (c *CLI) Status(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	text := string(raw)

	if isClientStatistics(c.prefixes, text) {
		stats, err := vpn.ParseClientStatisticsWith(c.prefixes, text)
		if err != nil {
			return err
		}
		return c.printClientStatistics(stats)
	}

	status, err := vpn.ParseServerStatusWith(c.prefixes, text)
	if err != nil {
		return err
	}
	return c.printServerStatus(status)
}

func isClientStatistics(prefixes mgmt.PrefixSet, text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || prefixes.IsNotification(line) {
			continue
		}
		return line == "OpenVPN STATISTICS"
	}
	return false
}

func (c *CLI) printClientStatistics(stats *vpn.ClientStatistics) error {
	fmt.Fprintf(c.out, "%s %s\n", c.style.title("CLIENT STATISTICS"), c.style.muted("updated "+formatTime(stats.Updated)))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, name := range stats.Order {
		fmt.Fprintf(w, "%s\t%d\n", name, stats.Counters[name])
	}
	return w.Flush()
}

func (c *CLI) printServerStatus(status *vpn.ServerStatus) error {
	fmt.Fprintf(c.out, "%s %s\n", c.style.title("CLIENT LIST"), c.style.muted("updated "+formatTime(status.Updated)))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMON NAME\tREAL ADDRESS\tBYTES IN\tBYTES OUT\tCONNECTED SINCE")
	fmt.Fprintln(w, "-----------\t------------\t--------\t---------\t---------------")
	for _, client := range status.Clients {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			client.CommonName, formatAddr(client.RealAddress.IsValid(), client.RealAddress.String()),
			client.BytesReceived, client.BytesSent, formatTime(client.ConnectedSince))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.style.title("ROUTING TABLE"))
	w = tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIRTUAL ADDRESS\tNETMASK\tCOMMON NAME\tREAL ADDRESS\tLAST REF")
	fmt.Fprintln(w, "---------------\t-------\t-----------\t------------\t--------")
	for _, route := range status.Routes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			route.VirtualAddress, orDash(route.Netmask()), route.CommonName,
			formatAddr(route.RealAddress.IsValid(), route.RealAddress.String()), formatTime(route.LastRef))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.style.title("GLOBAL STATS"))
	w = tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	keys := make([]string, 0, len(status.GlobalStats))
	for k := range status.GlobalStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, status.GlobalStats[k])
	}
	return w.Flush()
}

// Track feeds every line into a connection tracker and prints the result.
func (c *CLI) Track(r io.Reader) error {
	lines, err := readLines(r)
	if err != nil {
		return err
	}

	tracker := vpn.NewTracker(c.prefixes)
	for i, line := range lines {
		if err := tracker.Feed(line); err != nil {
			common.LogWarn("line %d: %v", i+1, err)
		}
	}
	snap := tracker.Snapshot()

	fmt.Fprintln(c.out, c.style.title("CONNECTION"))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Status\t%s\n", c.style.status(snap.Status))
	fmt.Fprintf(w, "State\t%s\n", orDash(snap.StateName))
	fmt.Fprintf(w, "Since\t%s\n", formatTime(snap.Since))
	fmt.Fprintf(w, "Virtual IP\t%s\n", formatAddr(snap.VirtualIP.IsValid(), snap.VirtualIP.String()))
	fmt.Fprintf(w, "Remote\t%s\n", formatAddr(snap.Remote.IsValid(), snap.Remote.String()))
	fmt.Fprintf(w, "Bytes in/out\t%d / %d\n", snap.Bytes.In, snap.Bytes.Out)
	if snap.Held {
		fmt.Fprintf(w, "Hold\twaiting for release\n")
	}
	if snap.LastError != "" {
		fmt.Fprintf(w, "Last error\t%s\n", snap.LastError)
	}
	fmt.Fprintf(w, "Lines\t%d (%d notifications, %d malformed)\n", snap.Lines, snap.Notifications, snap.Malformed)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(snap.ClientBytes) > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, c.style.title("CLIENT TRAFFIC"))
		w = tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CID\tBYTES IN\tBYTES OUT")
		ids := make([]int64, 0, len(snap.ClientBytes))
		for id := range snap.ClientBytes {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			bc := snap.ClientBytes[id]
			fmt.Fprintf(w, "%d\t%d\t%d\n", id, bc.In, bc.Out)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	counts := tracker.Counts()
	if len(counts) > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, c.style.title("NOTIFICATIONS"))
		w = tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "%s\t%d\n", t, counts[t])
		}
		return w.Flush()
	}
	return nil
}

// History lists archived sessions, or the notifications of one session
// when sessionID (or a unique prefix of it) is given.
func (c *CLI) History(ctx context.Context, sessionID string) error {
	if !common.FileExists(c.archivePath) {
		fmt.Fprintln(c.out, "No archive yet. Use --classify FILE --archive to record one.")
		return nil
	}

	store, err := archive.Open(c.archivePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if sessionID == "" {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(c.out, "No archived sessions.")
			return nil
		}

		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTARTED\tNOTIFICATIONS\tSOURCE")
		fmt.Fprintln(w, "-------\t-------\t-------------\t------")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID[:8], formatTime(s.StartedAt), s.Count, s.Source)
		}
		return w.Flush()
	}

	session, err := store.FindSession(ctx, sessionID)
	if err != nil {
		return err
	}
	entries, err := store.Notifications(ctx, session.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s %s\n", c.style.title("SESSION "+session.ID), c.style.muted(session.Source))
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tTYPE\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.LineNo, e.Notification.Type, common.Truncate(e.Notification.Message, messageWidth))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatAddr(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}

func formatHostPort(valid bool, host string, port int) string {
	if !valid {
		return "-"
	}
	if port == 0 {
		return host
	}
	if strings.Contains(host, ":") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`OpenVPN Management Inspector

Parses captured output of the OpenVPN management interface.
FILE may be "-" to read from stdin.

Usage:
  ovpn-mgmt [OPTIONS]

Options:
  --classify FILE     Classify every line (notification, reply, malformed)
  --archive           With --classify, record notifications in the archive
  --state FILE        Parse the reply to the "state" command
  --stats FILE        Parse the reply to the "load-stats" command
  --status FILE       Parse a "status" dump (client or server format)
  --track FILE        Fold notifications into a connection snapshot
  --history [ID]      List archived sessions, or show one session
  --config PATH       Use an alternate configuration file
  --verbose           Enable verbose logging
  --version           Show version and exit
  --help              Show this help message

Examples:
  ovpn-mgmt --classify capture.log --archive
  echo "state" | nc -q1 localhost 7505 | ovpn-mgmt --state -
  ovpn-mgmt --track capture.log
  ovpn-mgmt --history 3f2a9c1d`)
}
