package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
	"github.com/yllada/ovpn-mgmt/vpn"
)

// Palette
var (
	notificationColor = lipgloss.Color("#7dcfff") // sky blue
	successColor      = lipgloss.Color("#9ece6a") // sage green
	errorColor        = lipgloss.Color("#f7768e") // coral red
	warnColor         = lipgloss.Color("#e0af68") // amber
	headerColor       = lipgloss.Color("#7aa2f7") // periwinkle
	mutedColor        = lipgloss.Color("#565f89") // gray-blue
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(headerColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	tagStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(notificationColor)

	kindStyles = map[mgmt.LineKind]lipgloss.Style{
		mgmt.KindNotification: lipgloss.NewStyle().Foreground(notificationColor),
		mgmt.KindMalformed:    lipgloss.NewStyle().Bold(true).Foreground(errorColor),
		mgmt.KindSuccess:      lipgloss.NewStyle().Foreground(successColor),
		mgmt.KindError:        lipgloss.NewStyle().Foreground(errorColor),
		mgmt.KindEnd:          mutedStyle,
		mgmt.KindData:         mutedStyle,
	}

	statusStyles = map[vpn.ConnectionStatus]lipgloss.Style{
		vpn.StatusConnected:     lipgloss.NewStyle().Bold(true).Foreground(successColor),
		vpn.StatusConnecting:    lipgloss.NewStyle().Foreground(warnColor),
		vpn.StatusDisconnecting: lipgloss.NewStyle().Foreground(warnColor),
		vpn.StatusError:         lipgloss.NewStyle().Bold(true).Foreground(errorColor),
		vpn.StatusDisconnected:  mutedStyle,
	}
)

// styler applies styles only when color output is enabled.
type styler struct {
	enabled bool
}

// newStyler resolves a color mode against the terminal state of stdout.
func newStyler(mode string) styler {
	switch mode {
	case common.ColorAlways:
		// Force color output even when stdout is piped
		lipgloss.SetColorProfile(termenv.TrueColor)
		return styler{enabled: true}
	case common.ColorNever:
		return styler{enabled: false}
	default:
		return styler{enabled: term.IsTerminal(int(os.Stdout.Fd()))}
	}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styler) title(text string) string {
	return s.render(titleStyle, text)
}

func (s styler) muted(text string) string {
	return s.render(mutedStyle, text)
}

func (s styler) tag(text string) string {
	return s.render(tagStyle, text)
}

func (s styler) kind(k mgmt.LineKind, text string) string {
	return s.render(kindStyles[k], text)
}

func (s styler) status(st vpn.ConnectionStatus) string {
	return s.render(statusStyles[st], st.String())
}
